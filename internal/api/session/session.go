package session

import (
	"errors"
	"sync"

	"github.com/FACorreiaa/go-eat-today/internal/api/bookmark"
	"github.com/FACorreiaa/go-eat-today/internal/api/recommend"
	"github.com/FACorreiaa/go-eat-today/internal/geo"
	"github.com/FACorreiaa/go-eat-today/internal/types"
)

const DefaultRadius = 2000

var ErrPlaceNotFound = errors.New("place not found in session")

// Settings are the user's spin preferences. Include and Exclude hold the raw
// text as typed; Exclude is comma separated.
type Settings struct {
	Radius  int    `json:"radius" validate:"gte=1,lte=20000"`
	Count   int    `json:"count" validate:"gte=0,lte=50"`
	Include string `json:"include" validate:"max=100"`
	Exclude string `json:"exclude" validate:"max=200"`
}

// Criteria parses the raw include/exclude text.
func (s Settings) Criteria() types.FilterCriteria {
	return recommend.ParseCriteria(s.Include, s.Exclude)
}

// Session is one client's screen state. All fields are guarded by mu.
type Session struct {
	ID string

	sync *bookmark.Sync

	mu                sync.Mutex
	position          *types.Coordinate
	center            types.Coordinate
	settings          Settings
	candidates        []types.Place
	generalSelection  []types.Place
	bookmarkSelection []types.Place
	bookmarkMode      bool
	notices           []types.Notice
	searchToken       uint64
	spinToken         uint64
}

func New(id string, bookmarks *bookmark.Sync) *Session {
	return &Session{
		ID:       id,
		sync:     bookmarks,
		center:   types.DefaultCenter,
		settings: Settings{Radius: DefaultRadius},
	}
}

// BeginSearch starts a nearby search and returns its token. Only the most
// recently issued token may apply its results.
func (s *Session) BeginSearch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.searchToken++
	return s.searchToken
}

// ApplySearch installs the result of the search identified by token. It
// reports false, leaving the session untouched, when a newer search has been
// started since. An empty result keeps the previous candidates and queues
// the result's notice.
func (s *Session) ApplySearch(token uint64, result *types.SearchResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.searchToken {
		return false
	}
	if result == nil || len(result.Places) == 0 {
		notice := types.NoticeNoRestaurantsNearby
		if result != nil && result.Notice != nil {
			notice = *result.Notice
		}
		s.notices = append(s.notices, notice)
		return true
	}
	s.candidates = append([]types.Place(nil), result.Places...)
	s.generalSelection = nil
	if s.bookmarkMode {
		s.bookmarkSelection = nil
	}
	return true
}

func (s *Session) beginSpin() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spinToken++
	return s.spinToken
}

// applySpin stores a pick for the mode it was made in. A pick from a spin
// that has been overtaken, or whose mode has since changed, is dropped.
func (s *Session) applySpin(token uint64, bookmarkMode bool, res *recommend.PickResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if token != s.spinToken || bookmarkMode != s.bookmarkMode {
		return false
	}
	if res.Notice != nil {
		s.notices = append(s.notices, *res.Notice)
	}
	picked := append([]types.Place{}, res.Places...)
	if bookmarkMode {
		s.bookmarkSelection = picked
	} else {
		s.generalSelection = picked
	}
	return true
}

func (s *Session) addNotice(n types.Notice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, n)
}

// locate records the device position and moves the map there.
func (s *Session) locate(c types.Coordinate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos := c
	s.position = &pos
	s.center = c
}

func (s *Session) selectCenter(c types.Coordinate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.center = c
	if s.bookmarkMode {
		s.bookmarkSelection = nil
	}
}

func (s *Session) updateSettings(settings Settings) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = settings
}

func (s *Session) setMode(bookmarks bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookmarkMode = bookmarks
	s.generalSelection = nil
	s.bookmarkSelection = nil
}

func (s *Session) resetBookmarkSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookmarkSelection = nil
}

// searchArea returns the center and radius a search should use.
func (s *Session) searchArea() (types.Coordinate, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.center, s.settings.Radius
}

type spinState struct {
	bookmarkMode bool
	center       types.Coordinate
	settings     Settings
}

func (s *Session) spinState() spinState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return spinState{bookmarkMode: s.bookmarkMode, center: s.center, settings: s.settings}
}

// findPlace looks id up among everything the session has shown, then among
// the saved bookmarks.
func (s *Session) findPlace(id string) (types.Place, bool) {
	s.mu.Lock()
	for _, list := range [][]types.Place{s.candidates, s.generalSelection, s.bookmarkSelection} {
		for _, p := range list {
			if p.ID.String() == id {
				s.mu.Unlock()
				return p, true
			}
		}
	}
	s.mu.Unlock()

	if b, ok := s.sync.Snapshot()[id]; ok {
		return b.Place, true
	}
	return types.Place{}, false
}

// ViewPlace is a place as displayed, with the viewer's bookmark state.
type ViewPlace struct {
	types.Place
	Bookmarked bool `json:"bookmarked"`
}

// View is the display state of a session.
type View struct {
	SessionID      string            `json:"session_id"`
	UserID         string            `json:"user_id,omitempty"`
	Position       *types.Coordinate `json:"position,omitempty"`
	Center         types.Coordinate  `json:"center"`
	Settings       Settings          `json:"settings"`
	BookmarkMode   bool              `json:"bookmark_mode"`
	Selection      bool              `json:"selection"`
	Places         []ViewPlace       `json:"places"`
	CandidateCount int               `json:"candidate_count"`
	BookmarkCount  int               `json:"bookmark_count"`
	Notices        []types.Notice    `json:"notices"`
}

// View renders the session and drains its queued notices. In general mode
// the current pick is shown, or all candidates when nothing has been picked.
// In bookmark mode the current pick is shown, or the bookmarks within the
// search radius of the map center.
func (s *Session) View() *View {
	saved := s.sync.Snapshot()
	userID := s.sync.UserID()
	syncNotices := s.sync.Notices()

	s.mu.Lock()
	defer s.mu.Unlock()

	v := &View{
		SessionID:      s.ID,
		UserID:         userID,
		Center:         s.center,
		Settings:       s.settings,
		BookmarkMode:   s.bookmarkMode,
		CandidateCount: len(s.candidates),
		BookmarkCount:  len(saved),
	}
	if s.position != nil {
		pos := *s.position
		v.Position = &pos
	}

	var places []types.Place
	switch {
	case s.bookmarkMode && s.bookmarkSelection != nil:
		places, v.Selection = s.bookmarkSelection, true
	case s.bookmarkMode:
		places = geo.FilterWithin(saved.Places(), s.center, s.settings.Radius)
	case len(s.generalSelection) > 0:
		places, v.Selection = s.generalSelection, true
	default:
		places = s.candidates
	}

	annotated := geo.Annotate(places, s.position)
	v.Places = make([]ViewPlace, 0, len(annotated))
	for _, p := range annotated {
		v.Places = append(v.Places, ViewPlace{Place: p, Bookmarked: saved.Has(p.ID.String())})
	}

	v.Notices = append(append([]types.Notice{}, s.notices...), syncNotices...)
	s.notices = nil
	return v
}

// Close stops the session's bookmark subscription.
func (s *Session) Close() {
	s.sync.Close()
}
