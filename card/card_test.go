package card

import "testing"

func TestCardString(t *testing.T) {
	cases := []struct {
		c    Card
		want string
	}{
		{CardSpadeA, "A-Spade"},
		{CardClubT, "10-Club"},
		{CardHeart2, "2-Heart"},
		{CardDiamondQ, "Q-Diamond"},
		{CardInvalid, "Invalid"},
	}
	for _, tc := range cases {
		if got := tc.c.String(); got != tc.want {
			t.Fatalf("String(%#x) = %q, want %q", byte(tc.c), got, tc.want)
		}
	}
}

func TestCardValue(t *testing.T) {
	cases := map[Card]int{
		CardSpade2: 2,
		CardHeart9: 9,
		CardClubT:  10,
		CardClubJ:  10,
		CardHeartQ: 10,
		CardSpadeK: 10,
		CardSpadeA: 11,
	}
	for c, want := range cases {
		if got := c.Value(); got != want {
			t.Fatalf("%s value = %d, want %d", c, got, want)
		}
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, c := range Standard52() {
		got, err := Parse(c.String())
		if err != nil {
			t.Fatalf("Parse(%q) err: %v", c.String(), err)
		}
		if got != c {
			t.Fatalf("Parse(%q) = %s", c.String(), got)
		}
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, tok := range []string{"", "A", "A-Spoon", "1-Heart", "11-Club", "Spade-A"} {
		if _, err := Parse(tok); err == nil {
			t.Fatalf("Parse(%q) expected error", tok)
		}
	}
}

func TestStandard52Unique(t *testing.T) {
	cards := Standard52()
	if len(cards) != 52 {
		t.Fatalf("expected 52 cards, got %d", len(cards))
	}
	seen := make(map[Card]bool, 52)
	for _, c := range cards {
		if !c.Valid() {
			t.Fatalf("invalid card in standard set: %#x", byte(c))
		}
		if seen[c] {
			t.Fatalf("duplicate card %s", c)
		}
		seen[c] = true
	}
	if cards[0] != CardSpade2 || cards[51] != CardClubA {
		t.Fatalf("unexpected construction order: first=%s last=%s", cards[0], cards[51])
	}
}

func TestCardListString(t *testing.T) {
	var l CardList
	l.Add(CardSpadeA, CardClubT)
	if got := l.String(); got != "A-Spade 10-Club" {
		t.Fatalf("String() = %q", got)
	}
	if !l.Contains(CardClubT) || l.Contains(CardHeartA) {
		t.Fatalf("Contains mismatch")
	}
}
