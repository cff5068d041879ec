package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageRequest_Limit(t *testing.T) {
	tests := []struct {
		name       string
		maxResults int
		want       int
	}{
		{name: "zero uses default", maxResults: 0, want: DefaultMaxResults},
		{name: "negative uses default", maxResults: -5, want: DefaultMaxResults},
		{name: "normal value kept", maxResults: 25, want: 25},
		{name: "cap applied", maxResults: MaxMaxResults + 1, want: MaxMaxResults},
		{name: "exactly cap", maxResults: MaxMaxResults, want: MaxMaxResults},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PageRequest{MaxResults: tt.maxResults}
			assert.Equal(t, tt.want, p.Limit())
		})
	}
}

func TestPageRequest_Offset(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  int
	}{
		{name: "empty token", token: "", want: 0},
		{name: "not base64", token: "%%%", want: 0},
		{name: "not a number", token: "aGVsbG8=", want: 0},
		{name: "roundtrip", token: EncodePageToken(150), want: 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PageRequest{PageToken: tt.token}
			assert.Equal(t, tt.want, p.Offset())
		})
	}
}

func TestEncodePageToken(t *testing.T) {
	assert.Empty(t, EncodePageToken(0))
	assert.Empty(t, EncodePageToken(-10))
	assert.NotEmpty(t, EncodePageToken(1))
}

func TestNextPageToken(t *testing.T) {
	tests := []struct {
		name   string
		offset int
		limit  int
		total  int64
		want   int // decoded offset of the returned token; -1 means empty
	}{
		{name: "more pages", offset: 0, limit: 50, total: 120, want: 50},
		{name: "mid stream", offset: 50, limit: 50, total: 120, want: 100},
		{name: "last page", offset: 100, limit: 50, total: 120, want: -1},
		{name: "exact boundary", offset: 50, limit: 50, total: 100, want: -1},
		{name: "empty result", offset: 0, limit: 50, total: 0, want: -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token := NextPageToken(tt.offset, tt.limit, tt.total)
			if tt.want < 0 {
				assert.Empty(t, token)
				return
			}
			assert.Equal(t, tt.want, PageRequest{PageToken: token}.Offset())
		})
	}
}
