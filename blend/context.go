package blend

import (
	"github.com/milk9111/blendrig/clip"
	"github.com/milk9111/blendrig/common"
	"github.com/milk9111/blendrig/skeleton"
)

// ClipSource resolves clip names. *clip.Library implements it.
type ClipSource interface {
	Clip(name string) (*clip.Clip, error)
}

// Context is everything a blend tree reads from its surroundings: the frame
// clock, the skeleton it poses and where clips come from.
type Context struct {
	Clock    *common.Clock
	Skeleton *skeleton.Skeleton
	Clips    ClipSource
}
