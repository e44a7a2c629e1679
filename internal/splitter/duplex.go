package splitter

// DuplexPartner returns the index printed on the other side of p's sheet,
// assuming page 0 starts a sheet.
func DuplexPartner(p int) int {
	if p%2 == 0 {
		return p + 1
	}
	return p - 1
}

// ExpandDuplex adds the sheet partner of every color page so both sides of a
// sheet go to the color output. Partners outside [0,total) are dropped.
// Only members of the input are expanded; added partners are not expanded again.
// The input set is never modified.
func ExpandDuplex(color PageSet, total int, duplex bool) PageSet {
	out := color.Clone()
	if !duplex {
		return out
	}
	for p := range color {
		partner := DuplexPartner(p)
		if partner < 0 || partner >= total {
			continue
		}
		out.Add(partner)
	}
	return out
}
