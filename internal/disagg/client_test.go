package disagg

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisaggregate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/disaggregate", r.URL.Path)

		var req request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 300.0, req.TotalKWh)
		require.Len(t, req.Devices, 2)
		assert.Equal(t, "Refrigerator", req.Devices[0].Type)

		json.NewEncoder(w).Encode(Result{
			Breakdown: []Share{
				{Type: "Refrigerator", KWh: 108, Percent: 36, DailyHours: 24},
				{Type: "Air Conditioner", KWh: 192, Percent: 64, DailyHours: 4.3},
			},
			Summary: "Cooling dominates your usage",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", time.Second)
	res, err := c.Disaggregate(context.Background(), 300, []Device{
		{Type: "Refrigerator", Quantity: 1, RatedWatts: 150},
		{Type: "Air Conditioner", Quantity: 1, RatedWatts: 1500},
	})
	require.NoError(t, err)
	require.Len(t, res.Breakdown, 2)
	assert.Equal(t, 4.3, res.Breakdown[1].DailyHours)
	assert.Equal(t, "Cooling dominates your usage", res.Summary)
}

func TestDisaggregate_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Disaggregate(context.Background(), 100, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")

	_, err = NewClient("", 0).Disaggregate(context.Background(), 100, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)

	var nilClient *Client
	_, err = nilClient.Disaggregate(context.Background(), 100, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
