// Package aspects holds handler wrappers that apply to an endpoint as a whole.
package aspects

import (
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	"github.com/prebid/auction-orchestrator/config"
)

// QueuedRequestTimeout rejects requests which already waited in a fronting queue for as long as
// the queue allowed. The queue reports both values in headers, named by headers. Requests missing
// either header go through untouched.
func QueuedRequestTimeout(next httprouter.Handle, headers config.RequestTimeoutHeaders) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
		waited, budget := r.Header.Get(headers.RequestTimeInQueue), r.Header.Get(headers.RequestTimeoutInQueue)
		if waited == "" || budget == "" {
			next(w, r, params)
			return
		}

		waitedSec, err1 := strconv.ParseFloat(waited, 64)
		budgetSec, err2 := strconv.ParseFloat(budget, 64)
		switch {
		case err1 != nil || err2 != nil:
			http.Error(w, "Request timeout headers are incorrect (wrong format)", http.StatusBadRequest)
		case waitedSec >= budgetSec:
			http.Error(w, "Queued request processing time exceeded maximum", http.StatusRequestTimeout)
		default:
			next(w, r, params)
		}
	}
}
