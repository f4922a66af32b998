package availability

import (
	"sort"
	"time"

	"github.com/omninet-app/backend/internal/models"
)

// Listing is the partitioned, display-ordered view of a tag's blocks.
type Listing struct {
	Always   []models.AvailabilityBlock `json:"always"`
	Upcoming []models.AvailabilityBlock `json:"upcoming"`
	Past     []models.AvailabilityBlock `json:"past"`
}

// Partition splits blocks into always-available, upcoming and past, and
// applies the display ordering: upcoming by start ascending with sort_rank
// descending as tie-break, always-available by sort_rank descending, past by
// end descending. Stored status plays no part here; expiry is judged purely
// on end_at.
func Partition(blocks []models.AvailabilityBlock, now time.Time) Listing {
	var l Listing
	for _, b := range blocks {
		switch {
		case b.AlwaysAvailable():
			l.Always = append(l.Always, b)
		case b.Past(now):
			l.Past = append(l.Past, b)
		default:
			l.Upcoming = append(l.Upcoming, b)
		}
	}

	sort.SliceStable(l.Upcoming, func(i, j int) bool {
		si, sj := startOrZero(&l.Upcoming[i]), startOrZero(&l.Upcoming[j])
		if !si.Equal(sj) {
			return si.Before(sj)
		}
		return l.Upcoming[i].SortRank > l.Upcoming[j].SortRank
	})
	sort.SliceStable(l.Always, func(i, j int) bool {
		return l.Always[i].SortRank > l.Always[j].SortRank
	})
	sort.SliceStable(l.Past, func(i, j int) bool {
		return l.Past[i].EndAt.After(*l.Past[j].EndAt)
	})
	return l
}

// PublicView filters to blocks a visitor may see and act on: publicly
// visible, status live, not capacity-exhausted and not past. A live block
// whose remaining capacity hit zero is excluded even if its stored status
// was never flipped to sold_out.
func PublicView(blocks []models.AvailabilityBlock, now time.Time) []models.AvailabilityBlock {
	var out []models.AvailabilityBlock
	for _, b := range blocks {
		if b.Visibility != models.BlockVisibilityPublic {
			continue
		}
		if !b.EffectivelyLive(now) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func startOrZero(b *models.AvailabilityBlock) time.Time {
	if b.StartAt == nil {
		return time.Time{}
	}
	return *b.StartAt
}
