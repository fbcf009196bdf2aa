// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package router

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/actions"
	"github.com/zfoong/WhiteCollarAgent-sub000/pkg/llm"
)

type catalogStub struct {
	byName map[string]*actions.Action
	hits   []*actions.Action
}

func (c *catalogStub) Get(name string) (*actions.Action, error) {
	if a, ok := c.byName[name]; ok {
		return a, nil
	}
	return nil, fmt.Errorf("%w: %q", actions.ErrActionNotFound, name)
}

func (c *catalogStub) Search(_ context.Context, _ string, _ int) ([]*actions.Action, error) {
	return c.hits, nil
}

type genCall struct {
	stateless bool
	session   string
	callType  llm.CallType
	system    string
	user      string
}

type genStub struct {
	replies []string
	calls   []genCall
}

func (g *genStub) pop() string {
	if len(g.replies) == 0 {
		return ""
	}
	r := g.replies[0]
	g.replies = g.replies[1:]
	return r
}

func (g *genStub) Generate(_ context.Context, system, user string) (llm.Result, error) {
	g.calls = append(g.calls, genCall{stateless: true, system: system, user: user})
	return llm.Result{Content: g.pop()}, nil
}

func (g *genStub) GenerateWithSession(_ context.Context, taskID string, callType llm.CallType, user, systemForNew string) (llm.Result, error) {
	g.calls = append(g.calls, genCall{
		session: taskID, callType: callType, system: systemForNew, user: user,
	})
	return llm.Result{Content: g.pop()}, nil
}

type rendererStub struct{}

func (rendererStub) Render(_ string, vars map[string]any) (string, string, error) {
	query, _ := vars["query"].(string)
	candidates, _ := vars["candidates"].(string)
	return "pick one action", "Request: " + query + "\n" + candidates, nil
}

func builtinCatalog() *catalogStub {
	c := &catalogStub{byName: map[string]*actions.Action{}}
	descriptions := map[string]string{
		actions.BuiltinSendMessage: "Send a message to the user.",
		actions.BuiltinAskQuestion: "Ask the user a question.",
		actions.BuiltinStartTask:   "Create a new task.",
		actions.BuiltinUpdateTodos: "Replace the todo list.",
		actions.BuiltinEndTask:     "Finish the current task.",
		actions.BuiltinIgnore:      "Do nothing.",
	}
	for _, name := range actions.BuiltinNames() {
		mode := actions.ModeAll
		if name == actions.BuiltinUpdateTodos {
			mode = actions.ModeCLI
		}
		c.byName[name] = &actions.Action{
			Name:        name,
			Description: descriptions[name],
			Type:        actions.TypeAtomic,
			Mode:        mode,
			InputSchema: map[string]actions.SchemaField{
				"message": {Type: "str", Description: "text"},
			},
		}
	}
	return c
}

func TestRouteConversationPicksBuiltin(t *testing.T) {
	gen := &genStub{replies: []string{
		`{"action_name": "send message", "parameters": {"message": "hi"}}`,
	}}
	r := New(builtinCatalog(), gen, rendererStub{})

	act, sel, err := r.Route(context.Background(), Request{
		Mode:      ModeConversation,
		SessionID: "chat",
		Query:     "greet the user",
	})
	require.NoError(t, err)
	assert.Equal(t, actions.BuiltinSendMessage, act.Name)
	assert.Equal(t, "hi", sel.Parameters["message"])

	require.Len(t, gen.calls, 1)
	assert.True(t, gen.calls[0].stateless, "conversation selections must not open session caches")
	assert.Contains(t, gen.calls[0].user, "send message")
}

func TestRouteTaskUsesSessionCache(t *testing.T) {
	gen := &genStub{replies: []string{
		`{"action_name": "end task", "parameters": {"status": "completed", "message": "done"}}`,
	}}
	r := New(builtinCatalog(), gen, rendererStub{})

	_, _, err := r.Route(context.Background(), Request{
		Mode:      ModeTaskCLI,
		SessionID: "report-1a2b3c4d",
		Query:     "finish up",
	})
	require.NoError(t, err)
	require.Len(t, gen.calls, 1)
	assert.Equal(t, "report-1a2b3c4d", gen.calls[0].session)
	assert.Equal(t, llm.CallActionSelection, gen.calls[0].callType)
}

func TestRouteGUIUsesGUISession(t *testing.T) {
	catalog := builtinCatalog()
	catalog.hits = []*actions.Action{
		{Name: "click button", Description: "Click a UI element.", Type: actions.TypeAtomic, Mode: actions.ModeGUI},
	}
	gen := &genStub{replies: []string{
		`{"action_name": "click button", "parameters": {}}`,
	}}
	r := New(catalog, gen, rendererStub{})

	act, _, err := r.Route(context.Background(), Request{
		Mode:      ModeTaskGUI,
		SessionID: "gui-task",
		Query:     "press the save button",
	})
	require.NoError(t, err)
	assert.Equal(t, "click button", act.Name)
	require.Len(t, gen.calls, 1)
	assert.Equal(t, llm.CallGUIActionSelection, gen.calls[0].callType)
}

func TestRouteRetriesOnParseFailure(t *testing.T) {
	gen := &genStub{replies: []string{
		"sure, I'd pick the send message action",
		`{"action_name": "send message", "parameters": {"message": "ok"}}`,
	}}
	r := New(builtinCatalog(), gen, rendererStub{})

	act, _, err := r.Route(context.Background(), Request{
		Mode: ModeConversation, SessionID: "chat", Query: "say ok",
	})
	require.NoError(t, err)
	assert.Equal(t, actions.BuiltinSendMessage, act.Name)
	require.Len(t, gen.calls, 2)
	assert.Contains(t, gen.calls[1].user, "could not be parsed")
}

func TestRouteRetriesOnInvalidName(t *testing.T) {
	gen := &genStub{replies: []string{
		`{"action_name": "fly to moon", "parameters": {}}`,
		`{"action_name": "ignore", "parameters": {}}`,
	}}
	r := New(builtinCatalog(), gen, rendererStub{})

	act, _, err := r.Route(context.Background(), Request{
		Mode: ModeConversation, SessionID: "chat", Query: "nothing to do",
	})
	require.NoError(t, err)
	assert.Equal(t, actions.BuiltinIgnore, act.Name)
	require.Len(t, gen.calls, 2)
	assert.Contains(t, gen.calls[1].user, "not one of the candidates")
}

func TestRouteInvalidNameExhaustsRetries(t *testing.T) {
	gen := &genStub{replies: []string{
		`{"action_name": "fly to moon"}`,
		`{"action_name": "fly to moon"}`,
	}}
	r := New(builtinCatalog(), gen, rendererStub{}, WithRetries(1))

	_, _, err := r.Route(context.Background(), Request{
		Mode: ModeConversation, SessionID: "chat", Query: "whatever",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, actions.ErrActionNotFound)
	assert.Len(t, gen.calls, 2)
}

func TestRouteEmptyNameSignalsNewAction(t *testing.T) {
	gen := &genStub{replies: []string{
		`{"action_name": "", "parameters": {}}`,
	}}
	r := New(builtinCatalog(), gen, rendererStub{})

	act, sel, err := r.Route(context.Background(), Request{
		Mode: ModeTaskCLI, SessionID: "task-1", Query: "transcode a video",
	})
	require.Error(t, err)
	assert.Nil(t, act)
	require.NotNil(t, sel)

	na, ok := IsNewAction(err)
	require.True(t, ok)
	assert.Equal(t, "transcode a video", na.Query)
}

func TestRouteAcceptsCaseInsensitiveName(t *testing.T) {
	gen := &genStub{replies: []string{
		`{"action_name": "Send Message", "parameters": {"message": "hi"}}`,
	}}
	r := New(builtinCatalog(), gen, rendererStub{})

	act, sel, err := r.Route(context.Background(), Request{
		Mode: ModeConversation, SessionID: "chat", Query: "greet",
	})
	require.NoError(t, err)
	assert.Equal(t, actions.BuiltinSendMessage, act.Name)
	assert.Equal(t, actions.BuiltinSendMessage, sel.ActionName, "selection is canonicalized")
}

func TestCandidatesPerMode(t *testing.T) {
	catalog := builtinCatalog()
	catalog.hits = []*actions.Action{
		{Name: "write file", Description: "Write text to a file.", Type: actions.TypeAtomic, Mode: actions.ModeCLI},
		{Name: "click button", Description: "Click a UI element.", Type: actions.TypeAtomic, Mode: actions.ModeGUI},
		catalog.byName[actions.BuiltinSendMessage], // duplicate of a builtin
	}
	r := New(catalog, &genStub{}, rendererStub{})
	ctx := context.Background()

	conv, err := r.Candidates(ctx, ModeConversation, "")
	require.NoError(t, err)
	assert.Len(t, conv, len(actions.BuiltinNames()))

	cli, err := r.Candidates(ctx, ModeTaskCLI, "write something")
	require.NoError(t, err)
	names := actionNames(cli)
	assert.NotContains(t, names, actions.BuiltinIgnore)
	assert.Contains(t, names, "write file")
	assert.NotContains(t, names, "click button", "GUI-only actions stay out of CLI mode")
	assert.Equal(t, 1, count(names, actions.BuiltinSendMessage), "search duplicates collapse")

	simple, err := r.Candidates(ctx, ModeSimpleTask, "write something")
	require.NoError(t, err)
	names = actionNames(simple)
	assert.NotContains(t, names, actions.BuiltinIgnore)
	assert.NotContains(t, names, actions.BuiltinUpdateTodos)

	gui, err := r.Candidates(ctx, ModeTaskGUI, "press save")
	require.NoError(t, err)
	names = actionNames(gui)
	assert.NotContains(t, names, "write file", "CLI-only actions stay out of GUI mode")
	assert.NotContains(t, names, actions.BuiltinIgnore, "builtins join GUI only via search")
	assert.Contains(t, names, "click button")
}

func TestCandidatesUnknownMode(t *testing.T) {
	r := New(builtinCatalog(), &genStub{}, rendererStub{})
	_, err := r.Candidates(context.Background(), Mode("bogus"), "")
	assert.Error(t, err)
}

func TestFormatCandidatesDeterministic(t *testing.T) {
	list := []*actions.Action{{
		Name:        "write file",
		Description: "Write text to a file.",
		InputSchema: map[string]actions.SchemaField{
			"path":    {Type: "str", Description: "destination"},
			"content": {Type: "str", Description: "file body"},
		},
	}}
	first := FormatCandidates(list)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, FormatCandidates(list))
	}
	assert.Contains(t, first, "content (str): file body")
	assert.Contains(t, first, "path (str): destination")
}

func TestIsNewActionOnWrappedError(t *testing.T) {
	err := fmt.Errorf("route: %w", &NewActionError{Query: "q"})
	na, ok := IsNewAction(err)
	require.True(t, ok)
	assert.Equal(t, "q", na.Query)

	_, ok = IsNewAction(errors.New("plain"))
	assert.False(t, ok)
}

func actionNames(list []*actions.Action) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.Name
	}
	return out
}

func count(list []string, want string) int {
	n := 0
	for _, s := range list {
		if s == want {
			n++
		}
	}
	return n
}
