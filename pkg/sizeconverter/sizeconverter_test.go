package sizeconverter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHumanReadableSize(t *testing.T) {
	tests := []struct {
		size int64
		want string
	}{
		{size: 0, want: "0 B"},
		{size: 512, want: "512 B"},
		{size: 1536, want: "1.50 KB"},
		{size: 20 * 1024 * 1024, want: "20 MB"},
		{size: 3 * 1024 * 1024 * 1024, want: "3 GB"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, HumanReadableSize(tt.size))
		})
	}
	require.Equal(t, "20 MB", HumanReadableSizeInMB(20*1024*1024))
	require.Equal(t, "0.50 MB", HumanReadableSizeInMB(512*1024))
}
