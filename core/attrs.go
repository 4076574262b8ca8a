package core

import "strings"

// Attrs holds the submitted attributes of an entity, like a decoded form.
type Attrs map[string]string

// messageKey is accepted by every operation and becomes the revision message.
const messageKey = "log_message"

// check returns an IntegrityError if attrs contains a key which is not allowed.
func (attrs Attrs) check(allowed []string) error {
	var unknown []string
	for key := range attrs {
		if key == messageKey {
			continue
		}
		var ok bool
		for _, a := range allowed {
			if key == a {
				ok = true
				break
			}
		}
		if !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		return &IntegrityError{Params: unknown}
	}
	return nil
}

func (attrs Attrs) message() string {
	return strings.TrimSpace(attrs[messageKey])
}
