// Command demo wires config, container, workflow, and scheduler together
// into the smallest runnable engine: a two-node template workflow executed
// against an in-memory event store, with every lifecycle event loaded back
// from the store and printed once the run has finished.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/flowcraft/core/config"
	"github.com/flowcraft/core/container"
	"github.com/flowcraft/core/node"
	"github.com/flowcraft/core/scheduler"
	"github.com/flowcraft/core/taskctx"
	"github.com/flowcraft/core/workflow"
)

func main() {
	ctx := context.Background()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	c, err := container.Build(container.Dependencies{Config: cfg})
	if err != nil {
		log.Fatalf("container: %v", err)
	}
	defer c.Close()

	greet, err := node.NewTemplateNode("greet", nil, "greet", "Hello from flowcraft!")
	if err != nil {
		log.Fatalf("node: %v", err)
	}
	reply, err := node.NewTemplateNode("reply", []string{"greet"}, "reply", "{{greet}} Running as demo.")
	if err != nil {
		log.Fatalf("node: %v", err)
	}

	wf, err := workflow.NewBuilder("demo.workflow").
		AddNode("greet", greet).
		AddNode("reply", reply).
		AddEdge("greet", "reply").
		Build()
	if err != nil {
		log.Fatalf("workflow: %v", err)
	}

	const runID = "demo-run-1"
	sch := c.NewScheduler(wf, runID, scheduler.Config{})
	tc := taskctx.New(runID, "demo.workflow", nil)

	if err := sch.Run(ctx, tc); err != nil {
		log.Fatalf("run: %v", err)
	}

	replyOut, _ := tc.GetOutput("reply")
	fmt.Println("status:", tc.Status())
	fmt.Println("reply:", replyOut)

	events, err := c.EventStore().Load(ctx, runID, 1)
	if err != nil {
		log.Fatalf("load events: %v", err)
	}
	for _, e := range events {
		fmt.Printf("event: %s\n", e.EventType)
	}
}
