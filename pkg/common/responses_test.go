package common

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondJSON(rec, http.StatusCreated, map[string]int{"version": 4})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"version": 4}`, rec.Body.String())
}

func TestParseJSONBody(t *testing.T) {
	type body struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		payload string
		limit   int64
		wantErr bool
	}{
		{name: "valid", payload: `{"name": "kytos/topology.link_up"}`, limit: 1024},
		{name: "empty", payload: ``, limit: 1024, wantErr: true},
		{name: "unknown field", payload: `{"name": "kytos/topology.link_up", "content": {}}`, limit: 1024},
		{name: "trailing value", payload: `{"name": "x"} {"name": "y"}`, limit: 1024, wantErr: true},
		{name: "too large", payload: `{"name": "kytos/topology.link_up"}`, limit: 8, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.payload))
			var got body
			err := ParseJSONBody(httptest.NewRecorder(), req, &got, tt.limit)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "kytos/topology.link_up", got.Name)
		})
	}
}
