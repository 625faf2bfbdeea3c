package types

import "fmt"

// NoticeCode identifies a user-visible notice so clients can localise or style it.
type NoticeCode string

const (
	NoticeCodeNoRestaurantsNearby NoticeCode = "no_restaurants_nearby"
	NoticeCodeLocationPermission  NoticeCode = "location_permission_required"
	NoticeCodeLoginRequired       NoticeCode = "login_required"
	NoticeCodeNoBookmarks         NoticeCode = "no_bookmarks"
	NoticeCodeNoRestaurants       NoticeCode = "no_restaurants"
	NoticeCodeSearchFirst         NoticeCode = "search_first"
	NoticeCodeSetLocationFirst    NoticeCode = "set_location_first"
	NoticeCodeSearchError         NoticeCode = "search_error"
	NoticeCodeIncludeFallback     NoticeCode = "include_fallback"
	NoticeCodeBookmarkWrite       NoticeCode = "bookmark_write_failed"
	NoticeCodeNoSavedBookmarks    NoticeCode = "no_saved_bookmarks"
	NoticeCodeNoLikedBookmarks    NoticeCode = "no_liked_bookmarks"
)

// Notice is a one-shot message shown to the user. Empty results are reported
// as notices, not errors.
type Notice struct {
	Code    NoticeCode `json:"code"`
	Message string     `json:"message"`
}

var (
	NoticeNoRestaurantsNearby = Notice{Code: NoticeCodeNoRestaurantsNearby, Message: "근처에 식당이 없습니다."}
	NoticeLocationPermission  = Notice{Code: NoticeCodeLocationPermission, Message: "위치 권한이 필요합니다."}
	NoticeLoginRequired       = Notice{Code: NoticeCodeLoginRequired, Message: "로그인이 필요합니다."}
	NoticeNoBookmarks         = Notice{Code: NoticeCodeNoBookmarks, Message: "북마크가 없습니다."}
	NoticeNoRestaurants       = Notice{Code: NoticeCodeNoRestaurants, Message: "식당이 없습니다."}
	NoticeSearchFirst         = Notice{Code: NoticeCodeSearchFirst, Message: "먼저 식당을 검색해주세요."}
	NoticeSetLocationFirst    = Notice{Code: NoticeCodeSetLocationFirst, Message: "먼저 위치를 설정해주세요."}
	NoticeSearchError         = Notice{Code: NoticeCodeSearchError, Message: "검색 중 오류가 발생했습니다."}
	NoticeBookmarkWriteFailed = Notice{Code: NoticeCodeBookmarkWrite, Message: "북마크 저장에 실패했습니다."}
	NoticeNoSavedBookmarks    = Notice{Code: NoticeCodeNoSavedBookmarks, Message: "북마크된 식당이 없습니다."}
	NoticeNoLikedBookmarks    = Notice{Code: NoticeCodeNoLikedBookmarks, Message: "좋아요한 식당이 없습니다."}
)

// NoticeIncludeFallback is emitted when the include filter matched nothing and
// the picker recommends from the wider pool instead.
func NoticeIncludeFallback(include string) Notice {
	return Notice{
		Code:    NoticeCodeIncludeFallback,
		Message: fmt.Sprintf("%s 관련 음식점 없음. 전체에서 추천합니다.", include),
	}
}

// Ptr returns a pointer to a copy of n.
func (n Notice) Ptr() *Notice {
	return &n
}
