package capture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthURL(t *testing.T) {
	got, err := MonthURL("http://127.0.0.1:8080/", "2024-02")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/?month=2024-02", got)

	got, err = MonthURL("https://cal.example.com/kalena", "")
	require.NoError(t, err)
	assert.Equal(t, "https://cal.example.com/kalena/", got)

	_, err = MonthURL("file:///tmp", "")
	assert.Error(t, err)
}

func TestCaptureValidatesOptions(t *testing.T) {
	err := CaptureMonthPNG(context.Background(), Options{OutputPath: "out.png"})
	assert.ErrorContains(t, err, "BaseURL")

	err = CaptureMonthPNG(context.Background(), Options{BaseURL: "http://localhost"})
	assert.ErrorContains(t, err, "OutputPath")

	err = CaptureMonthPNG(context.Background(), Options{BaseURL: "ftp://localhost", OutputPath: "out.png"})
	assert.ErrorContains(t, err, "scheme")
}

func TestNormalizeDefaults(t *testing.T) {
	o := Options{BaseURL: "http://localhost", OutputPath: "out.png"}
	require.NoError(t, o.normalize())
	assert.Equal(t, DefaultWidth, o.Width)
	assert.Equal(t, DefaultHeight, o.Height)
	assert.Equal(t, DefaultTimeout, o.Timeout)
}
