package task

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseDate(t *testing.T) {
	got, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2024, time.February, 29), got)

	got, err = ParseDate("2024-02-29T23:30:00-05:00")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2024, time.February, 29), got)

	_, err = ParseDate("29/02/2024")
	assert.Error(t, err)
}

func TestDateOf_IgnoresTimeOfDay(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	assert.Equal(t, NewDate(2024, 3, 1), DateOf(time.Date(2024, 3, 1, 1, 0, 0, 0, loc)))
	assert.Equal(t, NewDate(2024, 3, 1), DateOf(time.Date(2024, 3, 1, 23, 59, 0, 0, time.UTC)))
}

func TestDate_DaysUntil(t *testing.T) {
	a := NewDate(2024, 3, 9)
	assert.Equal(t, 1, a.DaysUntil(NewDate(2024, 3, 10)))
	assert.Equal(t, -9, a.DaysUntil(NewDate(2024, 2, 29)))
	assert.Equal(t, 366, NewDate(2024, 1, 1).DaysUntil(NewDate(2025, 1, 1)))
}

func TestDate_JSON(t *testing.T) {
	type wrapper struct {
		Due Date `json:"due"`
	}
	b, err := json.Marshal(wrapper{Due: NewDate(2024, 5, 6)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"due":"2024-05-06"}`, string(b))

	b, err = json.Marshal(wrapper{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"due":null}`, string(b))

	var w wrapper
	require.NoError(t, json.Unmarshal([]byte(`{"due":""}`), &w))
	assert.True(t, w.Due.IsZero())
	require.NoError(t, json.Unmarshal([]byte(`{"due":"2024-05-06"}`), &w))
	assert.Equal(t, NewDate(2024, 5, 6), w.Due)
}

func TestDate_YAML(t *testing.T) {
	type wrapper struct {
		Due Date `yaml:"due"`
	}
	b, err := yaml.Marshal(wrapper{Due: NewDate(2024, 5, 6)})
	require.NoError(t, err)

	var w wrapper
	require.NoError(t, yaml.Unmarshal(b, &w))
	assert.Equal(t, NewDate(2024, 5, 6), w.Due)

	require.NoError(t, yaml.Unmarshal([]byte("due: 2024-07-08\n"), &w))
	assert.Equal(t, NewDate(2024, 7, 8), w.Due)
}
