package wiki

import "strings"

// Namespace numbers used by the graph.
const (
	NSMedia       = -2
	NSSpecial     = -1
	NSMain        = 0
	NSTalk        = 1
	NSUser        = 2
	NSUserTalk    = 3
	NSProject     = 4
	NSProjectTalk = 5
	NSFile        = 6
	NSFileTalk    = 7
	NSMediaWiki   = 8
	NSTemplate    = 10
	NSHelp        = 12
	NSCategory    = 14
	NSPortal      = 100
	NSBook        = 108
	NSDraft       = 118
	NSModule      = 828
	NSModuleTalk  = 829
)

// namespaceNames are the local names on English Wikipedia.
var namespaceNames = map[int]string{
	NSMedia:       "Media",
	NSSpecial:     "Special",
	NSMain:        "",
	NSTalk:        "Talk",
	NSUser:        "User",
	NSUserTalk:    "User talk",
	NSProject:     "Wikipedia",
	NSProjectTalk: "Wikipedia talk",
	NSFile:        "File",
	NSFileTalk:    "File talk",
	NSMediaWiki:   "MediaWiki",
	9:             "MediaWiki talk",
	NSTemplate:    "Template",
	11:            "Template talk",
	NSHelp:        "Help",
	13:            "Help talk",
	NSCategory:    "Category",
	15:            "Category talk",
	NSPortal:      "Portal",
	101:           "Portal talk",
	NSBook:        "Book",
	109:           "Book talk",
	NSDraft:       "Draft",
	119:           "Draft talk",
	126:           "MOS",
	127:           "MOS talk",
	710:           "TimedText",
	711:           "TimedText talk",
	NSModule:      "Module",
	NSModuleTalk:  "Module talk",
}

var namespaceAliases = map[string]int{
	"image":        NSFile,
	"image talk":   NSFileTalk,
	"project":      NSProject,
	"project talk": NSProjectTalk,
	"wp":           NSProject,
	"wt":           NSProjectTalk,
	"h":            NSHelp,
	"cat":          NSCategory,
	"t":            NSTemplate,
	"mos":          126,
}

var namespaceByName = func() map[string]int {
	m := make(map[string]int, len(namespaceNames)+len(namespaceAliases))
	for id, name := range namespaceNames {
		if name != "" {
			m[strings.ToLower(name)] = id
		}
	}
	for alias, id := range namespaceAliases {
		m[alias] = id
	}
	return m
}()

// NamespaceName returns the display prefix for ns, without the colon.
func NamespaceName(ns int) (string, bool) {
	name, ok := namespaceNames[ns]
	return name, ok
}

// LookupNamespace resolves a prefix such as "user_talk" or "WP".
func LookupNamespace(prefix string) (int, bool) {
	key := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(prefix, "_", " ")))
	id, ok := namespaceByName[key]
	return id, ok
}

// IsTalk reports whether ns is a talk namespace.
func IsTalk(ns int) bool {
	return ns > 0 && ns%2 == 1
}

// TalkNamespace returns the talk namespace paired with ns. Virtual
// namespaces have none.
func TalkNamespace(ns int) (int, bool) {
	if ns < 0 {
		return 0, false
	}
	if IsTalk(ns) {
		return ns, true
	}
	return ns + 1, true
}

// SubjectNamespace returns the content namespace paired with ns.
func SubjectNamespace(ns int) int {
	if IsTalk(ns) {
		return ns - 1
	}
	return ns
}
