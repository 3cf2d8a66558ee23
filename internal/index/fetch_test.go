package index

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/John-Robertt/herbie/internal/domain"
	"github.com/John-Robertt/herbie/internal/models"
)

func TestFetcher_FirstExistingIndex(t *testing.T) {
	const body = "1:0:d=2022010106:TMP:2 m above ground:anl:\n"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/x.grib2.idx":
			http.NotFound(w, r)
		case "/x.grib2.inv":
			_, _ = w.Write([]byte(body))
		default:
			t.Errorf("意外的请求：%s", r.URL.Path)
		}
	}))
	defer srv.Close()

	m := &models.Model{Name: "hrrr", IdxSuffix: []string{".idx", ".inv"}}
	raw, u, err := Fetcher{Client: srv.Client()}.Fetch(context.Background(), srv.URL+"/x.grib2", m)
	require.NoError(t, err)
	require.Equal(t, body, string(raw))
	require.Equal(t, srv.URL+"/x.grib2.inv", u)
}

func TestFetcher_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/x.index" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	m := &models.Model{Name: "ifs", IdxSuffix: []string{".index"}, IdxReplaceExt: true}
	_, _, err := Fetcher{Client: srv.Client()}.Fetch(context.Background(), srv.URL+"/x.grib2", m)
	require.ErrorIs(t, err, domain.ErrIndexNotFound)
}

func TestFetcher_ServerErrorIsNotFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := &models.Model{Name: "hrrr", IdxSuffix: []string{".idx"}}
	_, _, err := Fetcher{Client: srv.Client()}.Fetch(context.Background(), srv.URL+"/x.grib2", m)
	require.Error(t, err)
	require.False(t, errors.Is(err, domain.ErrIndexNotFound))
}
