package domain

import "testing"

func TestMetadataRoundTrip(t *testing.T) {
	descriptions := []string{
		"",
		"January statement",
		`quoted "text" with {braces}`,
		"multi\nline\ttext",
		"תדפיס עו\"ש לחודש ינואר",
	}
	for _, desc := range descriptions {
		for _, docType := range DocumentTypes() {
			gotDesc, gotType := DecodeMetadata(EncodeMetadata(desc, docType))
			if gotDesc != desc || gotType != docType {
				t.Fatalf("round trip (%q, %s) = (%q, %s)", desc, docType, gotDesc, gotType)
			}
		}
	}
}

func TestDecodeMetadataFallsBackToPlainText(t *testing.T) {
	raws := []string{
		"",
		"plain note",
		"{not json",
		`{"description":"x"}`,
		`{"type":"salary_slip"}`,
		`{"description":"x","type":"passport"}`,
		`{"description":5,"type":"id_card"}`,
		`{"description":null,"type":"id_card"}`,
		`{"description":"x","type":null}`,
		`["description","type"]`,
		`"just a string"`,
	}
	for _, raw := range raws {
		desc, docType := DecodeMetadata(raw)
		if desc != raw {
			t.Fatalf("DecodeMetadata(%q) description = %q", raw, desc)
		}
		if docType != DefaultDocumentType {
			t.Fatalf("DecodeMetadata(%q) type = %s, want %s", raw, docType, DefaultDocumentType)
		}
	}
}

func TestDocumentEditTrimsFileName(t *testing.T) {
	name := "  scan.pdf\t"
	desc := "  kept as typed "
	doc := DocumentEdit{FileName: &name, Description: &desc}.ApplyTo(Document{FileName: "old.pdf", Type: TypeIDCard})
	if doc.FileName != "scan.pdf" {
		t.Fatalf("FileName = %q, want trimmed", doc.FileName)
	}
	if doc.Description != desc || doc.Type != TypeIDCard {
		t.Fatalf("unexpected document: %+v", doc)
	}
}

func TestSessionComplete(t *testing.T) {
	full := Session{AccessToken: "tok", RootFolderID: "root", UserEmail: "a@b.c"}
	if !full.Complete() {
		t.Fatalf("expected complete session")
	}
	partial := full
	partial.UserEmail = ""
	if partial.Complete() {
		t.Fatalf("expected incomplete session without email")
	}
}
