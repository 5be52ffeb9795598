package carousel

// PropagateStructure copies the master's structural flags and button shape
// onto every follower. Follower content survives where the section stays
// enabled and is cleared where it becomes disabled. The input slice is not
// modified.
//
// The master itself is never cleared: a section it disables keeps its
// content (image and source included) hidden, and enabling the section again
// brings it back. Hidden content is never rendered or published.
func PropagateStructure(master Card, followers []Card) []Card {
	out := make([]Card, len(followers))
	for i, f := range followers {
		out[i] = conform(master, f)
	}
	return out
}

func conform(master, f Card) Card {
	if !master.EnableImage {
		f.dropImage()
	}
	if !master.EnableTitle {
		f.Title = ""
	}
	if !master.EnableContent {
		f.Content = ""
	}
	if !master.EnablePrice {
		f.Price = ""
	}
	if !master.EnableImageURL {
		f.ImageURL = ""
		f.ImageTag = ""
	}

	f.EnableImage = master.EnableImage
	f.EnableTitle = master.EnableTitle
	f.EnableContent = master.EnableContent
	f.EnablePrice = master.EnablePrice
	f.EnableImageURL = master.EnableImageURL

	for i, mb := range master.Buttons {
		if !mb.Enabled {
			f.Buttons[i] = blankButton(mb.Mode)
			continue
		}
		f.Buttons[i].Enabled = true
		f.Buttons[i].Mode = mb.Mode
		if f.Buttons[i].Action == "" {
			f.Buttons[i].Action = ActionSelect
		}
	}
	return f
}

// inSync reports whether every follower mirrors the master's structure.
func inSync(cards []Card) bool {
	if len(cards) == 0 {
		return true
	}
	want := cards[0].Structure()
	for _, c := range cards[1:] {
		if c.Structure() != want {
			return false
		}
	}
	return true
}
