package endpoints

import (
	"encoding/json"
	"net/http"

	"github.com/golang/glog"
)

const unknownBuildValue = "not-set"

type buildVersion struct {
	Revision string `json:"revision"`
	Version  string `json:"version"`
}

// NewVersionEndpoint serves the release version and the commit the binary was built from.
// Values the build did not stamp are reported as "not-set".
func NewVersionEndpoint(version, revision string) http.HandlerFunc {
	body, err := json.Marshal(buildVersion{
		Revision: orUnknown(revision),
		Version:  orUnknown(version),
	})
	if err != nil {
		glog.Fatalf("failed to build the /version response: %v", err)
	}

	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}
}

func orUnknown(v string) string {
	if v == "" {
		return unknownBuildValue
	}
	return v
}
