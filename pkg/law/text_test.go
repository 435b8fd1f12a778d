package law

import "testing"

func TestAddParagraph_OrderAndIDs(t *testing.T) {
	text := &NodeText{}
	text.AddParagraph("As used in this chapter, vehicle means every device.")
	text.AddParagraph("A violation of this section is punishable by a fine.")
	text.AddParagraph("Except as provided in subsection B, permits expire annually.")

	if len(text.Paragraphs) != 3 {
		t.Fatalf("expected 3 paragraphs, got %d", len(text.Paragraphs))
	}
	for i, want := range []string{"#p-0", "#p-1", "#p-2"} {
		if text.Paragraphs[i].ID != want {
			t.Fatalf("paragraph %d id = %q, want %q", i, text.Paragraphs[i].ID, want)
		}
	}
}

func TestClassifyParagraph(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"As used in this chapter, person means any individual.", TagDefinition},
		{"Whoever violates this section shall pay a fine of $500.", TagPenalty},
		{"The director shall adopt rules for licensure.", TagProcedure},
		{"This part does not apply unless the court orders otherwise.", TagException},
		{"The legislature finds the following.", TagGeneral},
		{"", TagGeneral},
	}
	for _, c := range cases {
		if got := ClassifyParagraph(c.text, DefaultParagraphRules); got != c.want {
			t.Fatalf("ClassifyParagraph(%q) = %q, want %q", c.text, got, c.want)
		}
	}
}

func TestPlain(t *testing.T) {
	var nilText *NodeText
	if nilText.Plain() != "" {
		t.Fatal("nil text should render empty")
	}

	text := &NodeText{}
	text.AddParagraphTagged("first", TagGeneral)
	text.AddParagraphTagged("second", TagGeneral)
	if text.Plain() != "first\nsecond" {
		t.Fatalf("unexpected plain rendering %q", text.Plain())
	}
}
