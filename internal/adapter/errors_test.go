package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/MrAnde7son/realestate-agent-sub002/internal/model"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNetErr struct{ timeout bool }

func (e *fakeNetErr) Error() string   { return "conn refused" }
func (e *fakeNetErr) Timeout() bool   { return e.timeout }
func (e *fakeNetErr) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	t.Parallel()

	t.Run("deadline is timeout", func(t *testing.T) {
		t.Parallel()
		ae := Classify(model.SourceYad2, context.DeadlineExceeded)
		assert.Equal(t, KindTimeout, ae.Kind)
		assert.Equal(t, model.SourceYad2, ae.Source)
	})

	t.Run("net timeout is timeout", func(t *testing.T) {
		t.Parallel()
		ae := Classify(model.SourceGisPermit, &fakeNetErr{timeout: true})
		assert.Equal(t, KindTimeout, ae.Kind)
	})

	t.Run("net error is network_error", func(t *testing.T) {
		t.Parallel()
		ae := Classify(model.SourceGisPermit, &fakeNetErr{})
		assert.Equal(t, KindNetworkError, ae.Kind)
	})

	t.Run("json error is parse_error even when wrapped", func(t *testing.T) {
		t.Parallel()
		var target map[string]any
		jsonErr := json.Unmarshal([]byte(`{broken`), &target)
		require.Error(t, jsonErr)
		ae := Classify(model.SourceRamiPlan, eris.Wrap(jsonErr, "unmarshal response"))
		assert.Equal(t, KindParseError, ae.Kind)
	})

	t.Run("classified error passes through", func(t *testing.T) {
		t.Parallel()
		orig := NewError(model.SourceGovDecisive, KindAuthError, errors.New("token expired"))
		ae := Classify(model.SourceGovDecisive, eris.Wrap(orig, "fetch"))
		assert.Equal(t, KindAuthError, ae.Kind)
	})
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	assert.True(t, Retryable(NewError(model.SourceYad2, KindTimeout, errors.New("x"))))
	assert.True(t, Retryable(NewError(model.SourceYad2, KindNetworkError, errors.New("x"))))
	assert.False(t, Retryable(NewError(model.SourceYad2, KindParseError, errors.New("x"))))
	assert.False(t, Retryable(NewError(model.SourceYad2, KindAuthError, errors.New("x"))))
	assert.False(t, Retryable(NewError(model.SourceYad2, KindStorageError, errors.New("x"))))
	assert.False(t, Retryable(errors.New("unclassified")))
}
