package imagefetch

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkallio/skycast-go/internal/errors"
	"github.com/mkallio/skycast-go/internal/httpclient"
)

func newMockedFetcher(t *testing.T) *Fetcher {
	t.Helper()

	client := httpclient.New(nil)
	httpmock.ActivateNonDefault(client.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	return NewWithClient(client, 5*time.Second)
}

func TestFetchReturnsBody(t *testing.T) {
	f := newMockedFetcher(t)

	httpmock.RegisterResponder("GET", "https://blob/sky/img1.jpg",
		httpmock.NewBytesResponder(200, []byte("jpegbytes")))

	data, err := f.Fetch(context.Background(), "https://blob/sky/img1.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpegbytes"), data)
}

func TestFetchNon2xxIsFetchError(t *testing.T) {
	f := newMockedFetcher(t)

	httpmock.RegisterResponder("GET", "https://blob/sky/missing.jpg",
		httpmock.NewStringResponder(404, "not found"))

	_, err := f.Fetch(context.Background(), "https://blob/sky/missing.jpg")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryImageFetch))
}

func TestFetchNetworkErrorIsFetchError(t *testing.T) {
	f := newMockedFetcher(t)

	httpmock.RegisterResponder("GET", "https://blob/sky/err.jpg",
		httpmock.NewErrorResponder(assert.AnError))

	_, err := f.Fetch(context.Background(), "https://blob/sky/err.jpg")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryImageFetch))
}

func TestFetchTimeoutIsTimeoutError(t *testing.T) {
	client := httpclient.New(nil)
	httpmock.ActivateNonDefault(client.HTTPClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	f := NewWithClient(client, 50*time.Millisecond)

	httpmock.RegisterResponder("GET", "https://blob/sky/slow.jpg",
		func(req *http.Request) (*http.Response, error) {
			time.Sleep(500 * time.Millisecond)
			return httpmock.NewBytesResponse(200, []byte("late")), nil
		})

	_, err := f.Fetch(context.Background(), "https://blob/sky/slow.jpg")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryTimeout),
		"a hung fetch surfaces as a timeout, not a generic fetch error")
}

func TestFetchOversizedBodyIsRejected(t *testing.T) {
	f := newMockedFetcher(t)

	httpmock.RegisterResponder("GET", "https://blob/sky/huge.jpg",
		httpmock.NewBytesResponder(200, make([]byte, maxImageBytes+1)))

	_, err := f.Fetch(context.Background(), "https://blob/sky/huge.jpg")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryImageFetch))
	assert.Contains(t, err.Error(), "byte limit")
}

func TestFetchEmptyURL(t *testing.T) {
	f := newMockedFetcher(t)

	_, err := f.Fetch(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
}
