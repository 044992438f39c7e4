// Package wiki holds the MediaWiki records served by the graph and the title
// and timestamp rules they follow.
package wiki

// Page is a row of the page table.
type Page struct {
	ID           int64  `mapstructure:"page_id"`
	Namespace    int    `mapstructure:"page_namespace"`
	Title        string `mapstructure:"page_title"`
	IsRedirect   bool   `mapstructure:"page_is_redirect"`
	IsNew        bool   `mapstructure:"page_is_new"`
	Touched      string `mapstructure:"page_touched"`
	LinksUpdated string `mapstructure:"page_links_updated"`
	Latest       int64  `mapstructure:"page_latest"`
	Len          int64  `mapstructure:"page_len"`
	ContentModel string `mapstructure:"page_content_model"`
	Lang         string `mapstructure:"page_lang"`
}

// Key returns the page's (namespace, title) key.
func (p Page) Key() TitleKey {
	return TitleKey{Namespace: p.Namespace, Name: p.Title}
}

// Revision is a row of the revision table.
type Revision struct {
	ID        int64  `mapstructure:"rev_id"`
	Page      int64  `mapstructure:"rev_page"`
	CommentID int64  `mapstructure:"rev_comment_id"`
	Actor     int64  `mapstructure:"rev_actor"`
	Timestamp string `mapstructure:"rev_timestamp"`
	MinorEdit bool   `mapstructure:"rev_minor_edit"`
	Deleted   int    `mapstructure:"rev_deleted"`
	Len       int64  `mapstructure:"rev_len"`
	ParentID  int64  `mapstructure:"rev_parent_id"`
	SHA1      string `mapstructure:"rev_sha1"`
}

// User is a row of the user table. ActorID is only set when the user was
// reached through an actor and never read from the user table.
type User struct {
	ID           int64   `mapstructure:"user_id"`
	Name         string  `mapstructure:"user_name"`
	RealName     string  `mapstructure:"user_real_name"`
	Registration *string `mapstructure:"user_registration"`
	EditCount    int64   `mapstructure:"user_editcount"`
	ActorID      int64   `mapstructure:"-"`
}

// Actor links an edit or log entry to a registered user or an IP address.
// User is 0 for IP actors.
type Actor struct {
	ID   int64  `mapstructure:"actor_id"`
	User int64  `mapstructure:"actor_user"`
	Name string `mapstructure:"actor_name"`
}

// Anonymous reports whether the actor has no user account.
func (a Actor) Anonymous() bool {
	return a.User == 0
}

// UserGroup is a row of user_groups.
type UserGroup struct {
	User   int64   `mapstructure:"ug_user"`
	Group  string  `mapstructure:"ug_group"`
	Expiry *string `mapstructure:"ug_expiry"`
}

// Category is a row of the category table.
type Category struct {
	ID      int64  `mapstructure:"cat_id"`
	Title   string `mapstructure:"cat_title"`
	Pages   int64  `mapstructure:"cat_pages"`
	Subcats int64  `mapstructure:"cat_subcats"`
	Files   int64  `mapstructure:"cat_files"`
}

// CategoryCounts are the member counts of a category.
type CategoryCounts struct {
	Total   int64
	Pages   int64
	Subcats int64
	Files   int64
}

// Counts returns member counts. Total is the sum of the three kinds.
func (c Category) Counts() CategoryCounts {
	return CategoryCounts{
		Total:   c.Pages + c.Subcats + c.Files,
		Pages:   c.Pages,
		Subcats: c.Subcats,
		Files:   c.Files,
	}
}

// LogEvent is a row of the logging table.
type LogEvent struct {
	ID        int64  `mapstructure:"log_id"`
	Type      string `mapstructure:"log_type"`
	Action    string `mapstructure:"log_action"`
	Timestamp string `mapstructure:"log_timestamp"`
	Actor     int64  `mapstructure:"log_actor"`
	Page      int64  `mapstructure:"log_page"`
	Namespace int    `mapstructure:"log_namespace"`
	Title     string `mapstructure:"log_title"`
	CommentID int64  `mapstructure:"log_comment_id"`
	Params    string `mapstructure:"log_params"`
	Deleted   int    `mapstructure:"log_deleted"`
}

// ExternalLink is an externallinks row split into its indexed domain and path.
type ExternalLink struct {
	DomainIndex string `mapstructure:"el_to_domain_index"`
	Path        string `mapstructure:"el_to_path"`
}
