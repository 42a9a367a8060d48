package domain

// UserRecord is a registered reviewer. The two cursors let a returning user
// resume on the image and flag they last worked with.
type UserRecord struct {
	Name               string  `json:"name"`
	Email              string  `json:"email"`
	RegistrationDate   string  `json:"registration_date"`
	LastAnnotatedImage *string `json:"last_annotated_image"`
	LastSelectedFlag   *string `json:"last_selected_flag"`
}

// Clone returns a copy that shares no pointers with r
func (r UserRecord) Clone() UserRecord {
	ret := r
	if r.LastAnnotatedImage != nil {
		image := *r.LastAnnotatedImage
		ret.LastAnnotatedImage = &image
	}
	if r.LastSelectedFlag != nil {
		flag := *r.LastSelectedFlag
		ret.LastSelectedFlag = &flag
	}
	return ret
}

// UserDirectory maps an email to its record
type UserDirectory map[string]*UserRecord
