package health

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker(t *testing.T) {
	ctx := context.Background()
	checker := NewChecker()

	// no checks yet
	assert.Equal(t, StatusHealthy, checker.GetOverallStatus())

	ok := func(context.Context) error { return nil }
	fail := func(context.Context) error { return errors.New("no living connections") }

	check := checker.RunCheck(ctx, "datastore:es1", ok)
	assert.Equal(t, StatusHealthy, check.Status)
	assert.Equal(t, "OK", check.Message)

	checker.RunCheck(ctx, "datastore:es2", fail)
	assert.Equal(t, StatusDegraded, checker.GetOverallStatus())

	checker.RunCheck(ctx, "datastore:es1", fail)
	assert.Equal(t, StatusUnhealthy, checker.GetOverallStatus())

	checks := checker.GetAllChecks()
	require.Len(t, checks, 2)
	assert.Equal(t, "datastore:es1", checks[0].Name)
	assert.Equal(t, "no living connections", checks[0].Message)

	checker.Remove("datastore:es1")
	checker.Remove("datastore:es2")
	assert.Equal(t, StatusHealthy, checker.GetOverallStatus())
}

func TestStatusJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Status{"status": StatusDegraded})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"degraded"}`, string(data))
	assert.Equal(t, "unknown", Status(42).String())
}
