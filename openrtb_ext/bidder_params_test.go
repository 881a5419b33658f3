package openrtb_ext

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const appnexusSchema = `{
  "$schema": "http://json-schema.org/draft-04/schema#",
  "title": "Appnexus Adapter Params",
  "type": "object",
  "properties": {
    "placementId": {"type": "integer"}
  },
  "required": ["placementId"]
}`

func newTestValidator(t *testing.T) BidderParamValidator {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "appnexus.json"), []byte(appnexusSchema), 0644))
	validator, err := NewBidderParamsValidator(dir)
	require.NoError(t, err)
	return validator
}

func TestBidderParamValidator(t *testing.T) {
	validator := newTestValidator(t)

	testCases := []struct {
		desc    string
		bidder  BidderName
		params  string
		isValid bool
	}{
		{desc: "valid params", bidder: "appnexus", params: `{"placementId":12}`, isValid: true},
		{desc: "missing required field", bidder: "appnexus", params: `{}`, isValid: false},
		{desc: "wrong type", bidder: "appnexus", params: `{"placementId":"12"}`, isValid: false},
		{desc: "bidder without schema", bidder: "rubicon", params: `{"anything":true}`, isValid: true},
	}

	for _, test := range testCases {
		err := validator.Validate(test.bidder, json.RawMessage(test.params))
		if test.isValid {
			assert.NoError(t, err, test.desc)
		} else {
			assert.Error(t, err, test.desc)
		}
	}
}

func TestBidderParamSchema(t *testing.T) {
	validator := newTestValidator(t)

	assert.JSONEq(t, appnexusSchema, validator.Schema("appnexus"))
	assert.Empty(t, validator.Schema("rubicon"))
}

func TestBidderParamValidatorRejectsReservedNames(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prebid.json"), []byte(appnexusSchema), 0644))

	_, err := NewBidderParamsValidator(dir)
	assert.Error(t, err)
}

func TestBidderParamValidatorMissingDirectory(t *testing.T) {
	_, err := NewBidderParamsValidator(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
