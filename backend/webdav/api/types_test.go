package api

import (
	"encoding/xml"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatusOKTreatsMissingStatusAsOK(t *testing.T) {
	assert.True(t, Response{}.StatusOK())
}

func TestStatusOKParsesStatusLine(t *testing.T) {
	assert.True(t, Response{Stat: []string{"HTTP/1.1 200 OK"}}.StatusOK())
	assert.False(t, Response{Stat: []string{"HTTP/1.1 404 Not Found"}}.StatusOK())
}

func TestIsDirReflectsResourceType(t *testing.T) {
	assert.False(t, Response{}.IsDir())
	collection := xml.Name{Local: "collection"}
	assert.True(t, Response{Props: Prop{Type: &collection}}.IsDir())
}

func TestModTimeParsesRFC1123AndFallsBackOnError(t *testing.T) {
	r := Response{Props: Prop{Modified: "Mon, 02 Jan 2026 03:04:05 GMT"}}
	want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, want, r.ModTime())

	assert.True(t, Response{Props: Prop{Modified: "not a date"}}.ModTime().IsZero())
}
