package content

// Ref locates an activity inside the document.
type Ref struct {
	Activity Activity
	Section  int
	Page     int
}

// SectionIndex summarizes one section for progress tracking.
type SectionIndex struct {
	ID       string
	Required []string   // required trackable activities and games
	Scored   []string   // every activity whose outcome is scored
	Dividers []string   // page-turn dividers, in order
	Pages    [][]string // required activity IDs per page
}

// PageCount is the number of pages the section's dividers produce.
func (s SectionIndex) PageCount() int { return len(s.Dividers) + 1 }

// Index is built once per document and answers lookups for the runtime.
type Index struct {
	doc      *Document
	byID     map[string]Ref
	sections []SectionIndex
}

func NewIndex(d *Document) *Index {
	ix := &Index{doc: d, byID: map[string]Ref{}}
	for si, s := range d.Sections {
		sec := SectionIndex{ID: s.ID, Pages: [][]string{nil}}
		page := 0
		for _, a := range s.Activities {
			id := a.Meta().ID
			ix.byID[id] = Ref{Activity: a, Section: si, Page: page}
			switch {
			case IsPageBreak(a):
				sec.Dividers = append(sec.Dividers, id)
				page++
				sec.Pages = append(sec.Pages, nil)
			case IsRequired(a):
				sec.Required = append(sec.Required, id)
				sec.Pages[page] = append(sec.Pages[page], id)
			}
			if IsScored(a) {
				sec.Scored = append(sec.Scored, id)
			}
		}
		ix.sections = append(ix.sections, sec)
	}
	return ix
}

func (ix *Index) Document() *Document { return ix.doc }

func (ix *Index) Lookup(id string) (Ref, bool) {
	r, ok := ix.byID[id]
	return r, ok
}

func (ix *Index) Sections() []SectionIndex { return ix.sections }

func (ix *Index) Section(i int) SectionIndex { return ix.sections[i] }

func (ix *Index) SectionCount() int { return len(ix.sections) }

// RequiresPass reports whether id completes only on a passing outcome.
func (ix *Index) RequiresPass(id string) bool {
	r, ok := ix.byID[id]
	return ok && RequiresPass(r.Activity)
}

// IsScored reports whether id is a known scored activity.
func (ix *Index) IsScored(id string) bool {
	r, ok := ix.byID[id]
	return ok && IsScored(r.Activity)
}

// Games lists every game activity in document order.
func (ix *Index) Games() []Activity {
	var out []Activity
	for _, s := range ix.doc.Sections {
		for _, a := range s.Activities {
			if Classify(a) == ClassGame {
				out = append(out, a)
			}
		}
	}
	return out
}
