package busconn

import "github.com/vbus-go/vbus/internal/wireutil"

// buildSubject assembles the final bus subject for a logical path,
// prepending id and hostname per spec.md §4.1: "if with_host prepend the
// local hostname; if with_id prepend the id". The authoritative subject
// table (spec.md §6) orders segments id, then host, then path.
func buildSubject(id, hostname, path string, withID, withHost bool) string {
	segments := make([]string, 0, 4)
	if withID {
		segments = append(segments, id)
	}
	if withHost {
		segments = append(segments, hostname)
	}
	segments = append(segments, wireutil.SplitPath(path)...)
	return wireutil.JoinPath(segments...)
}
