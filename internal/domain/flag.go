package domain

// FlagDefinition is a quality issue reviewers can raise, with the guidance
// shown next to it.
type FlagDefinition struct {
	ID       string `yaml:"id" json:"id"`
	Guidance string `yaml:"guidance" json:"guidance"`
}

// FlagCatalog is the ordered set of flags. Order is display order.
type FlagCatalog []FlagDefinition

// Lookup returns the definition with the given id
func (c FlagCatalog) Lookup(id string) (FlagDefinition, bool) {
	for _, flag := range c {
		if flag.ID == id {
			return flag, true
		}
	}
	return FlagDefinition{}, false
}

// IDs returns the flag ids in display order
func (c FlagCatalog) IDs() []string {
	ret := make([]string, len(c))
	for i, flag := range c {
		ret[i] = flag.ID
	}
	return ret
}
