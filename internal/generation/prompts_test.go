package generation

import (
	"strings"
	"testing"

	"github.com/ryan258/insight-capsule/internal/domain"
)

func TestCapsuleRequestIncludesTranscript(t *testing.T) {
	req := CapsuleRequest("my raw idea", true)
	if req.Role != domain.RoleCapsule {
		t.Fatalf("role = %s", req.Role)
	}
	if !req.PreferLocal {
		t.Fatal("prefer local not carried")
	}
	if !strings.Contains(req.Prompt, "my raw idea") {
		t.Fatalf("transcript missing from prompt:\n%s", req.Prompt)
	}
}

func TestRequestForActionKinds(t *testing.T) {
	ins := &domain.Insight{Transcript: "thought", Capsule: "capsule"}
	for _, kind := range []string{"outline", "draft", "takeaways"} {
		req, err := RequestForAction(kind, ins, false)
		if err != nil {
			t.Fatalf("%s: %v", kind, err)
		}
		if string(req.Role) != kind {
			t.Fatalf("%s mapped to role %s", kind, req.Role)
		}
		if !strings.Contains(req.Prompt, "capsule") {
			t.Fatalf("%s prompt missing capsule:\n%s", kind, req.Prompt)
		}
	}
	if _, err := RequestForAction("interpretive-dance", ins, false); err == nil {
		t.Fatal("unknown kind accepted")
	}
}

func TestDraftRequestUsesLatestOutline(t *testing.T) {
	ins := &domain.Insight{
		Transcript: "thought",
		Capsule:    "capsule",
		Drafts: []domain.Draft{
			{Kind: "outline", Text: "old outline"},
			{Kind: "takeaways", Text: "some takeaways"},
			{Kind: "outline", Text: "new outline"},
		},
	}
	req := DraftRequest(ins, false)
	if !strings.Contains(req.Prompt, "new outline") {
		t.Fatalf("latest outline missing:\n%s", req.Prompt)
	}
	if strings.Contains(req.Prompt, "old outline") {
		t.Fatalf("stale outline included:\n%s", req.Prompt)
	}

	bare := DraftRequest(&domain.Insight{Transcript: "t", Capsule: "c"}, false)
	if strings.Contains(bare.Prompt, "Outline to follow") {
		t.Fatalf("outline section rendered without an outline:\n%s", bare.Prompt)
	}
}
