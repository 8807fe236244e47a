package handler

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReferenceHandler_ListCurrencies(t *testing.T) {
	c, w := newTestContext()
	NewReferenceHandler().ListCurrencies(c)

	require.Equal(t, http.StatusOK, w.Code)
	items := decodeResponse(t, w).Data.([]interface{})
	require.NotEmpty(t, items)
	assert.Equal(t, "AOA", items[0].(map[string]interface{})["code"])
}

func TestReferenceHandler_ListTaxRates(t *testing.T) {
	c, w := newTestContext()
	NewReferenceHandler().ListTaxRates(c)

	require.Equal(t, http.StatusOK, w.Code)
	items := decodeResponse(t, w).Data.([]interface{})
	codes := make([]string, 0, len(items))
	for _, it := range items {
		codes = append(codes, it.(map[string]interface{})["code"].(string))
	}
	assert.ElementsMatch(t, []string{"NOR", "INT", "RED", "ISE"}, codes)
}
