package comfyui

import (
	"errors"
	"os"
	"testing"
)

func TestParseWorkflowUnwrapsPrompt(t *testing.T) {
	wf, err := ParseWorkflow([]byte(`{"prompt":{"6":{"inputs":{"text":"x"},"class_type":"CLIPTextEncode"}}}`))
	if err != nil {
		t.Fatalf("ParseWorkflow: %v", err)
	}
	if !wf.Has("6") || wf["6"].Inputs["text"] != "x" {
		t.Fatalf("workflow = %+v", wf)
	}
}

func TestParseWorkflowRejects(t *testing.T) {
	tests := []string{
		``,
		`null`,
		`{}`,
		`[1,2]`,
		`{"1":{"inputs":{}}}`,
	}
	for _, in := range tests {
		if _, err := ParseWorkflow([]byte(in)); err == nil {
			t.Fatalf("ParseWorkflow(%q) expected error", in)
		}
	}
}

func TestSetInputMissingNode(t *testing.T) {
	wf := DefaultWorkflow()
	if err := wf.SetInput("58", "image", "x.png"); !errors.Is(err, ErrNodeNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestCloneIsIndependent(t *testing.T) {
	wf := DefaultWorkflow()
	cp, err := wf.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	_ = cp.SetPrompts("changed", "")
	if wf[PositiveNode].Inputs["text"] != "" {
		t.Fatalf("clone shares inputs with original")
	}
}

func TestBundledInpaintWorkflowHasPatchedNodes(t *testing.T) {
	data, err := os.ReadFile("../../assets/inpaint_api.json")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	wf, err := ParseWorkflow(data)
	if err != nil {
		t.Fatalf("ParseWorkflow: %v", err)
	}
	for _, id := range []string{PositiveNode, NegativeNode, OutputNode, InpaintImageNode, InpaintMaskNode} {
		if !wf.Has(id) {
			t.Fatalf("inpaint workflow lacks node %s (has %v)", id, wf.NodeIDs())
		}
	}
}

func TestOutputImagesPrefersNode(t *testing.T) {
	entry := HistoryEntry{Outputs: map[string]NodeOutput{
		"20": {Images: []ImageRef{{Filename: "b.png"}}},
		"9":  {Images: []ImageRef{{Filename: "a.png"}}},
		"10": {Images: []ImageRef{{Filename: "c.png"}}},
	}}
	refs := entry.OutputImages(OutputNode)
	if len(refs) != 3 || refs[0].Filename != "a.png" || refs[1].Filename != "c.png" || refs[2].Filename != "b.png" {
		t.Fatalf("refs = %+v", refs)
	}
}
