package tags

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTag_String(t *testing.T) {
	assert.Equal(t, "NOTAG", NoTag.String())
	assert.Equal(t, "BDY", Boundary.String())
	assert.Equal(t, "REQ|BDY|NOSURF|PARBDY", ParallelMask.String())
	assert.Equal(t, "BDY|0x100", (Boundary | 1<<8).String())
}

func TestTag_SetClear(t *testing.T) {
	tag := NoTag.Set(Boundary | Required)
	assert.True(t, tag.Has(Boundary))
	assert.True(t, tag.Has(Boundary|Required))
	assert.False(t, tag.Has(Boundary|NoSurf))
	assert.True(t, tag.HasAny(Boundary|NoSurf))
	tag = tag.Clear(Required)
	assert.Equal(t, Boundary, tag)
}

func TestUntagParallel(t *testing.T) {
	tests := []struct {
		name     string
		in, want Tag
	}{
		{"not parallel keeps everything", Boundary | Required | NoSurf, Boundary | Required | NoSurf},
		{"plain cut", ParallelMask, NoTag},
		{"cut that was a true boundary", ParallelMask | ParBdyBdy, ParBdyBdy},
		{"durable flags survive", ParBdy | Boundary | Geo | Corner, Geo | Corner},
		{"only the parallel bit", ParBdy, NoTag},
		{"no tag", NoTag, NoTag},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UntagParallel(tt.in))
		})
	}
}

func TestTagParallel(t *testing.T) {
	assert.Equal(t, ParallelMask, TagParallel(NoTag))
	assert.Equal(t, ParallelMask|ParBdyBdy|Geo, TagParallel(ParBdyBdy|Geo))
	// A cut round trip leaves only the durable flags
	assert.Equal(t, Geo, UntagParallel(TagParallel(Geo)))
}
