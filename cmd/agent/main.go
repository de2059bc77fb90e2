package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"browser-agent/internal/di"
	"browser-agent/internal/domain/entity"
	"browser-agent/internal/infrastructure/env"
)

func main() {
	os.Exit(run())
}

func run() int {
	envService := env.NewEnvService()

	fmt.Println("\nEnter a task for the agent:")
	reader := bufio.NewReader(os.Stdin)
	instruction, err := reader.ReadString('\n')
	if err != nil {
		log.Print("Failed to read input: ", err)
		return 1
	}
	instruction = strings.TrimSpace(instruction)

	container, err := di.NewContainer(di.Config{
		LLMProvider:     envService.Get("LLM_PROVIDER"),
		APIKey:          envService.MustGet("OPENROUTER_API_KEY"),
		Model:           envService.MustGet("OPENROUTER_MODEL_NAME"),
		BrowserHeadless: envService.GetBool("BROWSER_HEADLESS", false),
		MaxSessions:     envService.GetInt("MAX_BROWSER_SESSIONS", 2),
		StepTimeout:     envService.GetDuration("STEP_TIMEOUT", 60*time.Second),
		MaxRunDuration:  envService.GetDuration("MAX_RUN_DURATION", 30*time.Minute),
		RetryBudget:     envService.GetInt("MODEL_RETRY_BUDGET", 3),
	})
	if err != nil {
		log.Printf("Failed to initialize: %v", err)
		return 1
	}
	defer container.Close()

	task := entity.Task{
		Instruction: instruction,
		MaxSteps:    envService.GetInt("MAX_STEPS", 50),
	}

	runID, err := container.Agents.Start(context.Background(), "console", task)
	if err != nil {
		container.Logger.Error("Failed to start run", "error", err)
		fmt.Printf("\nFailed to start: %v\n", err)
		return 1
	}

	container.Logger.Info("Run started", "run_id", runID, "task", instruction)
	fmt.Println("\nAgent is working...")

	result, err := container.Agents.Await(context.Background(), runID, 31*time.Minute)
	if err != nil {
		container.Logger.Error("Await failed", "run_id", runID, "error", err)
		fmt.Printf("\nError: %v\n", err)
		return 1
	}

	switch result.Phase {
	case entity.RunPhaseSucceeded:
		fmt.Println("\nFINAL ANSWER:")
		fmt.Println(result.FinalAnswer)
	case entity.RunPhaseCancelled:
		fmt.Println("\nRun was cancelled.")
	default:
		fmt.Printf("\nRun failed (%s): %s\n", result.Reason, result.Error)
		return 1
	}
	return 0
}
