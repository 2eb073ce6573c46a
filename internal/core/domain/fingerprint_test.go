package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/memo/internal/core/domain"
)

// workerFingerprint pins the encoding: changing it invalidates every existing cache.
const workerFingerprint domain.Fingerprint = "ce15a2794ecdbba04c366880a2cadf082635102be4c3e13fdb079298d57bb5cf"

func TestComputeFingerprint_Stable(t *testing.T) {
	fp, err := domain.ComputeFingerprint("v1", map[string]any{"n": 4, "val": 1})
	require.NoError(t, err)
	assert.Equal(t, workerFingerprint, fp)
	assert.True(t, fp.Valid())
	assert.Equal(t, "ce15a2794ecd", fp.Short())
	assert.Equal(t, string(workerFingerprint), fp.String())

	v2 := mustFingerprint(t, "v2", map[string]any{"n": 4, "val": 1})
	assert.Equal(t, domain.Fingerprint("b3ddeb8fec7ccea9fbcc7a2e80042e77da3f9a6e06cb1faf3b03f4e24e48fb2c"), v2)
}

func TestComputeFingerprint_OrderIndependent(t *testing.T) {
	a := map[string]any{}
	a["alpha"] = 1
	a["beta"] = map[string]any{"x": 1, "y": []any{"p", "q"}}
	a["gamma"] = "g"

	b := map[string]any{}
	b["gamma"] = "g"
	b["beta"] = map[string]any{"y": []any{"p", "q"}, "x": 1}
	b["alpha"] = 1

	fpA, err := domain.ComputeFingerprint("v1", a)
	require.NoError(t, err)
	fpB, err := domain.ComputeFingerprint("v1", b)
	require.NoError(t, err)
	assert.Equal(t, fpA, fpB)
}

func TestComputeFingerprint_Sensitivity(t *testing.T) {
	base := map[string]any{"n": 4, "val": 1, "name": "fit"}
	baseFP, err := domain.ComputeFingerprint("v1", base)
	require.NoError(t, err)

	t.Run("code identity", func(t *testing.T) {
		fp, err := domain.ComputeFingerprint("v2", base)
		require.NoError(t, err)
		assert.NotEqual(t, baseFP, fp)
	})

	t.Run("each input", func(t *testing.T) {
		changes := map[string]any{"n": 5, "val": 2, "name": "plot"}
		for key, value := range changes {
			changed := map[string]any{}
			for k, v := range base {
				changed[k] = v
			}
			changed[key] = value

			assert.NotEqual(t, baseFP, mustFingerprint(t, "v1", changed), key)
		}
	})

	t.Run("added and removed inputs", func(t *testing.T) {
		assert.NotEqual(t, baseFP, mustFingerprint(t, "v1", map[string]any{"n": 4, "val": 1}))
		assert.NotEqual(t, baseFP, mustFingerprint(t, "v1", map[string]any{"n": 4, "val": 1, "name": "fit", "extra": nil}))
	})

	t.Run("strings that are not valid UTF-8", func(t *testing.T) {
		ff := mustFingerprint(t, "v1", map[string]any{"path": "\xff"})
		assert.NotEqual(t, ff, mustFingerprint(t, "v1", map[string]any{"path": "\xfe"}))
		assert.NotEqual(t, ff, mustFingerprint(t, "v1", map[string]any{"path": "\uFFFD"}))
		assert.NotEqual(t,
			mustFingerprint(t, "\xff", base),
			mustFingerprint(t, "\xfe", base),
		)
	})

	t.Run("code identity is not an ordinary input", func(t *testing.T) {
		assert.NotEqual(t,
			mustFingerprint(t, "v1", map[string]any{"code": "v2"}),
			mustFingerprint(t, "v2", map[string]any{"code": "v1"}),
		)
	})
}

func TestFingerprint_Valid(t *testing.T) {
	tests := []struct {
		fp   domain.Fingerprint
		want bool
	}{
		{fp: workerFingerprint, want: true},
		{fp: "", want: false},
		{fp: "abc", want: false},
		{fp: domain.Fingerprint("CE15A2794ECDBBA04C366880A2CADF082635102BE4C3E13FDB079298D57BB5CF"), want: false},
		{fp: domain.Fingerprint("../5a2794ecdbba04c366880a2cadf082635102be4c3e13fdb079298d57bb5cf"), want: false},
	}

	for _, tt := range tests {
		t.Run(string(tt.fp), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.fp.Valid())
		})
	}

	assert.Equal(t, "abc", domain.Fingerprint("abc").Short())
}

func mustFingerprint(t *testing.T, codeIdentity string, inputs map[string]any) domain.Fingerprint {
	t.Helper()
	fp, err := domain.ComputeFingerprint(codeIdentity, inputs)
	require.NoError(t, err)
	return fp
}
