package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/adrianliechti/prompter/pkg/executor"
	"github.com/adrianliechti/prompter/pkg/executor/anthropic"
	"github.com/adrianliechti/prompter/pkg/executor/bedrock"
	"github.com/adrianliechti/prompter/pkg/executor/google"
	"github.com/adrianliechti/prompter/pkg/executor/openai"
	"github.com/adrianliechti/prompter/pkg/prompt"
)

func main() {
	providerFlag := flag.String("provider", "openai", "provider (openai, anthropic, google, bedrock)")
	modelFlag := flag.String("model", "", "model id")

	urlFlag := flag.String("url", "", "base url")
	tokenFlag := flag.String("token", "", "api token")

	systemFlag := flag.String("system", "", "system instruction")

	flag.Parse()

	if *modelFlag == "" {
		fmt.Fprintln(os.Stderr, "model is required")
		os.Exit(1)
	}

	e, err := newExecutor(*providerFlag, *modelFlag, *urlFlag, *tokenFlag)

	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}

	chat(context.Background(), e, *systemFlag)
}

func newExecutor(provider, model, url, token string) (executor.Executor, error) {
	switch provider {
	case "openai":
		var options []openai.Option

		if url != "" {
			options = append(options, openai.WithBaseURL(url))
		}

		if token != "" {
			options = append(options, openai.WithToken(token))
		}

		return openai.New(model, options...)

	case "anthropic":
		var options []anthropic.Option

		if token != "" {
			options = append(options, anthropic.WithToken(token))
		}

		return anthropic.New(model, options...)

	case "google":
		var options []google.Option

		if token != "" {
			options = append(options, google.WithToken(token))
		}

		return google.New(model, options...)

	case "bedrock":
		return bedrock.New(model)

	default:
		return nil, fmt.Errorf("unknown provider %q", provider)
	}
}

func chat(ctx context.Context, e executor.Executor, system string) {
	reader := bufio.NewReader(os.Stdin)
	output := os.Stdout

	p := prompt.New(system)

LOOP:
	for {
		output.WriteString(">>> ")
		input, err := reader.ReadString('\n')

		if err != nil {
			return
		}

		input = strings.TrimSpace(input)

		if input == "" {
			continue LOOP
		}

		if strings.HasPrefix(input, "/") {
			switch strings.ToLower(input) {
			case "/reset":
				p = prompt.New(system)
				continue LOOP

			default:
				output.WriteString("Unknown command\n")
				continue LOOP
			}
		}

		p = p.Append(prompt.UserText(input))

		response, err := e.Execute(ctx, p)

		if err != nil {
			output.WriteString(err.Error() + "\n")
			continue LOOP
		}

		p = p.Append(response.Messages()...)

		output.WriteString(response.Text())
		output.WriteString("\n")
		output.WriteString("\n")
	}
}
