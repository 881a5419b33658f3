package endpoints

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionEndpoint(t *testing.T) {
	testCases := []struct {
		description  string
		version      string
		revision     string
		expectedBody string
	}{
		{
			description:  "stamped build",
			version:      "1.4.0",
			revision:     "4a8e2f1",
			expectedBody: `{"revision":"4a8e2f1","version":"1.4.0"}`,
		},
		{
			description:  "local build",
			expectedBody: `{"revision":"not-set","version":"not-set"}`,
		},
		{
			description:  "revision only",
			revision:     "4a8e2f1",
			expectedBody: `{"revision":"4a8e2f1","version":"not-set"}`,
		},
	}

	for _, test := range testCases {
		w := httptest.NewRecorder()
		NewVersionEndpoint(test.version, test.revision)(w, nil)

		assert.JSONEq(t, test.expectedBody, w.Body.String(), test.description)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"), test.description)
	}
}
