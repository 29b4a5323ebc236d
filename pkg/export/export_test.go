package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleArchive() Archive {
	return Archive{
		Title: "Personal Data Export",
		Sections: []Section{
			{Title: "Account", Fields: []Field{
				{Name: "email", Value: "a@x.com"},
				{Name: "role", Value: "seeker"},
			}},
			{Title: "Sessions", Fields: []Field{
				{Name: "active sessions", Value: "2"},
			}},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	data, err := NewCSVExporter().Render(sampleArchive())
	require.NoError(t, err)

	assert.Contains(t, string(data), "section,field,value")
	assert.Contains(t, string(data), "Account,email,a@x.com")
	assert.Contains(t, string(data), "Sessions,active sessions,2")
}

func TestCSVExporterRequiresSections(t *testing.T) {
	_, err := NewCSVExporter().Render(Archive{Title: "empty"})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	data, err := NewPDFExporter().Render(sampleArchive())
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
}

func TestPDFExporterRequiresSections(t *testing.T) {
	_, err := NewPDFExporter().Render(Archive{})
	assert.Error(t, err)
}
