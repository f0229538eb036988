package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/fatih/color"

	"github.com/randalmurphal/nodemap/pkg/nodemap"
)

func (a *app) register(ctx context.Context, args []string) error {
	if a.password == "" {
		return fmt.Errorf("register: password required (-password or NODEMAP_PASSWORD)")
	}
	if err := a.client.Register(ctx, args[0], args[1], a.password); err != nil {
		return err
	}
	color.Green("registered %s", args[0])
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	if a.password == "" {
		return fmt.Errorf("login: password required (-password or NODEMAP_PASSWORD)")
	}
	user, err := a.client.Login(ctx, args[0], a.password)
	if err != nil {
		return err
	}
	if err := a.creds.SaveFile(a.settings.Session.CredentialFile); err != nil {
		return err
	}
	color.Green("signed in as %s", user.Username)
	return nil
}

func (a *app) logout(ctx context.Context, _ []string) error {
	err := a.client.Logout(ctx)
	if saveErr := a.creds.SaveFile(a.settings.Session.CredentialFile); saveErr != nil {
		return saveErr
	}
	if err != nil {
		return err
	}
	color.Green("signed out")
	return nil
}

func (a *app) status(ctx context.Context, _ []string) error {
	st, err := a.client.Status(ctx)
	if err != nil {
		return err
	}
	color.Green("%s: %s", st.Status, st.Message)
	return nil
}

func (a *app) list(ctx context.Context, _ []string) error {
	sess, err := a.session(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	graphs := sess.Store().Sorted()
	if len(graphs) == 0 {
		fmt.Println("no graphs yet, create one with: nodemapctl create <name> <goal> <desc>")
		return nil
	}
	for _, g := range graphs {
		star := " "
		if g.IsFavorite {
			star = color.YellowString("*")
		}
		fmt.Printf("%s %-6s %-24s %s\n", star, g.ID, g.Name, g.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func (a *app) create(ctx context.Context, args []string) error {
	g, err := a.client.CreateGraph(ctx, nodemap.GraphDraft{Name: args[0], Goal: args[1], Description: args[2]})
	if err != nil {
		return err
	}
	color.Green("created graph %s (%s)", g.ID, g.Name)
	return nil
}

// open selects graph id in a new session and waits for its canvas.
func (a *app) open(ctx context.Context, id string) (*nodemap.Session, error) {
	sess, err := a.session(ctx)
	if err != nil {
		return nil, err
	}
	if err := sess.SelectGraph(ctx, nodemap.ID(id)); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

func (a *app) show(ctx context.Context, args []string) error {
	sess, err := a.open(ctx, args[0])
	if err != nil {
		return err
	}
	defer sess.Close()

	doc, _ := sess.Store().Payload()
	color.Cyan("%s: %s", doc.Name, doc.Goal)
	for _, n := range sess.Canvas().Nodes() {
		fmt.Printf("  node %-12s %-20s (%.0f, %.0f)\n", n.ID, n.Data.Label, n.Position.X, n.Position.Y)
	}
	for _, e := range sess.Canvas().Edges() {
		fmt.Printf("  edge %s -> %s\n", e.Source, e.Target)
	}
	return nil
}

func (a *app) drop(ctx context.Context, args []string) error {
	x, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("drop: bad x: %w", err)
	}
	y, err := strconv.ParseFloat(args[3], 64)
	if err != nil {
		return fmt.Errorf("drop: bad y: %w", err)
	}

	agents, err := a.client.ListAgents(ctx)
	if err != nil {
		return err
	}
	var desc nodemap.AgentDescriptor
	for _, ag := range agents {
		if ag.ID.String() == args[1] || ag.Name == args[1] {
			desc = ag.Descriptor()
			break
		}
	}
	if desc.ID.IsZero() {
		return fmt.Errorf("drop: no agent %q", args[1])
	}
	data, err := nodemap.NewDataTransfer(desc)
	if err != nil {
		return err
	}

	sess, err := a.open(ctx, args[0])
	if err != nil {
		return err
	}
	defer sess.Close()

	node, ok := sess.Drop(data, nodemap.Point{X: x, Y: y}, nodemap.Rect{})
	if !ok {
		return fmt.Errorf("drop: graph %s is not loaded", args[0])
	}
	if err := sess.SaveNow(ctx); err != nil {
		return err
	}
	color.Green("placed %s as %s", desc.Name, node.ID)
	return nil
}

func (a *app) connect(ctx context.Context, args []string) error {
	sess, err := a.open(ctx, args[0])
	if err != nil {
		return err
	}
	defer sess.Close()

	e, err := sess.Connect(args[1], args[2])
	if err != nil {
		return err
	}
	if err := sess.SaveNow(ctx); err != nil {
		return err
	}
	color.Green("connected %s", e.ID)
	return nil
}

func (a *app) favorite(ctx context.Context, args []string) error {
	sess, err := a.session(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	fav, err := sess.ToggleFavorite(ctx, nodemap.ID(args[0]))
	if err != nil {
		return err
	}
	if fav {
		color.Yellow("graph %s is now a favorite", args[0])
	} else {
		fmt.Printf("graph %s is no longer a favorite\n", args[0])
	}
	return nil
}

func (a *app) agents(ctx context.Context, _ []string) error {
	agents, err := a.client.ListAgents(ctx)
	if err != nil {
		return err
	}
	for _, ag := range agents {
		fmt.Printf("%-6s %-20s %-10s %s\n", ag.ID, ag.Name, ag.Type, ag.Model)
	}
	return nil
}

func (a *app) createAgent(ctx context.Context, args []string) error {
	ag, err := a.client.CreateAgent(ctx, nodemap.AgentDraft{Name: args[0], Type: args[1], Model: args[2], SystemPrompt: args[3]})
	if err != nil {
		return err
	}
	color.Green("created agent %s (%s)", ag.ID, ag.Name)
	return nil
}
