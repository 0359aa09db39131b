package services

import (
	"strings"

	"github.com/tesseract-hub/ingestion-service/internal/clients"
	"github.com/tesseract-hub/ingestion-service/internal/models"
)

// noResultsMarker is the page title substring that identifies a genuine
// empty search. The tag emits no_search_results for every search performed
// on the search page, found results or not; only pages carrying this title
// really found nothing.
const noResultsMarker = "No Results Found"

// Reclassify corrects the upstream mistag: no_search_results rows whose
// page title lacks the marker are successful searches. They are moved to
// view_search_results with param_no_search_results_term renamed to
// param_search_term; all other fields are untouched. Rows are copied, not
// mutated, and the pass runs exactly once between extraction and loading.
func Reclassify(eventRows map[string][]clients.EventRow) {
	noResults := eventRows[models.EventTypeNoSearchResults]
	if len(noResults) == 0 {
		return
	}

	kept := make([]clients.EventRow, 0, len(noResults))
	var reclassified []clients.EventRow

	for _, row := range noResults {
		if strings.Contains(row.String("param_page_title"), noResultsMarker) {
			kept = append(kept, row)
			continue
		}

		moved := make(clients.EventRow, len(row))
		for key, value := range row {
			moved[key] = value
		}
		moved["param_search_term"] = moved["param_no_search_results_term"]
		delete(moved, "param_no_search_results_term")
		reclassified = append(reclassified, moved)
	}

	eventRows[models.EventTypeNoSearchResults] = kept
	if len(reclassified) > 0 {
		eventRows[models.EventTypeViewSearchResults] = append(
			eventRows[models.EventTypeViewSearchResults], reclassified...)
	}
}
