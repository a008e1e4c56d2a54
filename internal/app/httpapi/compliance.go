package httpapi

import (
	"archive/zip"
	"context"
	"encoding/json"
	"net/http"
)

// writeComplianceZIP streams an admin-only compliance report as a ZIP
// archive with one JSON entry each for the indexing run summary, the
// watched folders, and up to 1000 most recent indexing runs. Quarantine
// stats are not included.
func writeComplianceZIP(ctx context.Context, w http.ResponseWriter, svc Services) {
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="compliance-export.zip"`)

	zw := zip.NewWriter(w)
	defer zw.Close()

	summary, err := svc.Runs.Summary(ctx)
	if err == nil {
		writeZIPJSON(zw, "run_summary.json", summary)
	}

	folders, err := svc.RootRegistry.ListFolders(ctx, false, nil, nil)
	if err == nil {
		writeZIPJSON(zw, "watched_folders.json", folders)
	}

	runsList, err := svc.Runs.ListRuns(ctx, 1000, 0)
	if err == nil {
		writeZIPJSON(zw, "recent_runs.json", runsList)
	}
}

func writeZIPJSON(zw *zip.Writer, name string, data interface{}) {
	entry, err := zw.Create(name)
	if err != nil {
		return
	}
	_ = json.NewEncoder(entry).Encode(data)
}
