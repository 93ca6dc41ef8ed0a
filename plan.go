package main

// move is one rename inside a directory. src is the name the entry
// currently has: its original name while planning, its temporary name once
// phase one has run.
type move struct {
	from, to         int
	fromName, toName string
	src              string
}

// movePlan is the staged renumbering of one directory.
type movePlan struct {
	moves      []move
	collisions []move
	// resolved are moves that renaming in ascending key order with a live
	// existence check would have refused.
	resolved []move
}

// planMoves maps every entry of l to key+offset. A target is refused when
// another move already claimed it or when an entry that stays put occupies
// it. Entries are visited in ascending key order so the result does not
// depend on the order the directory was read in.
func planMoves(l *dirListing, offset int, name func(int) string) movePlan {
	var p movePlan
	if offset == 0 || len(l.entries) == 0 {
		return p
	}
	entries := append([]entry(nil), l.entries...)
	sortEntries(entries)

	candidates := make([]move, 0, len(entries))
	for _, e := range entries {
		to := e.key + offset
		candidates = append(candidates, move{
			from:     e.key,
			to:       to,
			fromName: e.name,
			toName:   name(to),
			src:      e.name,
		})
	}
	p.moves, p.collisions = settle(candidates, l.names)

	naive := naiveRefusals(candidates, l.names)
	for _, m := range p.moves {
		if naive[m.fromName] {
			p.resolved = append(p.resolved, m)
		}
	}
	return p
}

// settle drops moves until every remaining target is free once all
// remaining sources have been vacated. names holds every name present in the
// directory. A dropped move pins its source, which can knock out further
// moves, so it runs to a fixed point.
func settle(moves []move, names map[string]bool) (ok, refused []move) {
	ok = moves
	for {
		vacated := make(map[string]bool, len(ok))
		for _, m := range ok {
			vacated[m.src] = true
		}
		claimed := make(map[string]bool, len(ok))
		keep := make([]move, 0, len(ok))
		for _, m := range ok {
			if claimed[m.toName] || (names[m.toName] && !vacated[m.toName]) {
				refused = append(refused, m)
				continue
			}
			claimed[m.toName] = true
			keep = append(keep, m)
		}
		if len(keep) == len(ok) {
			return keep, refused
		}
		ok = keep
	}
}

// naiveRefusals replays renaming in ascending key order, checking each
// target against the directory as it stands at that moment, and returns the
// sources that would have been skipped.
func naiveRefusals(candidates []move, names map[string]bool) map[string]bool {
	occupied := make(map[string]bool, len(names))
	for n := range names {
		occupied[n] = true
	}
	refused := make(map[string]bool)
	for _, m := range candidates {
		if occupied[m.toName] {
			refused[m.fromName] = true
			continue
		}
		delete(occupied, m.fromName)
		occupied[m.toName] = true
	}
	return refused
}
