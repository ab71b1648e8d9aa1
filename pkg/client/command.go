package client

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Command is one parsed shell call, e.g. sendKeys('[name="q"]', 'golang').
type Command struct {
	Name string
	Args []string
}

// Output is what a command produced: a value to print and screenshots to save.
type Output struct {
	Value       any
	Screenshots map[string][]byte
}

type handler struct {
	arity int
	run   func(p Program, args []string) (Output, error)
}

func value(v any, err error) (Output, error) {
	return Output{Value: v}, err
}

func done(err error) (Output, error) {
	return Output{Value: lo.If(err == nil, "ok").Else("")}, err
}

var handlers = map[string]handler{
	"navigate":         {1, func(p Program, a []string) (Output, error) { return done(p.Navigate(a[0])) }},
	"navigateStatus":   {1, func(p Program, a []string) (Output, error) { return value(p.NavigateStatus(a[0])) }},
	"title":            {0, func(p Program, _ []string) (Output, error) { return value(p.Title()) }},
	"getURL":           {0, func(p Program, _ []string) (Output, error) { return value(p.GetURL()) }},
	"click":            {1, func(p Program, a []string) (Output, error) { return done(p.Click(a[0])) }},
	"tryClick":         {1, func(p Program, a []string) (Output, error) { return value(p.TryClick(a[0])) }},
	"sendKeys":         {2, func(p Program, a []string) (Output, error) { return done(p.SendKeys(a[0], a[1])) }},
	"submit":           {1, func(p Program, a []string) (Output, error) { return done(p.Submit(a[0])) }},
	"text":             {1, func(p Program, a []string) (Output, error) { return value(p.Text(a[0])) }},
	"isVisible":        {1, func(p Program, a []string) (Output, error) { return value(p.IsVisible(a[0])) }},
	"isElementPresent": {1, func(p Program, a []string) (Output, error) { return value(p.IsElementPresent(a[0])) }},
	"waitReady":        {1, func(p Program, a []string) (Output, error) { return done(p.WaitReady(a[0])) }},
	"waitVisible":      {1, func(p Program, a []string) (Output, error) { return done(p.WaitVisible(a[0])) }},
	"waitClickable":    {1, func(p Program, a []string) (Output, error) { return done(p.WaitClickable(a[0])) }},
	"waitURLContains":  {1, func(p Program, a []string) (Output, error) { return done(p.WaitURLContains(a[0])) }},
	"takeScreenshot": {1, func(p Program, a []string) (Output, error) {
		shot, err := p.TakeScreenshot(a[0])
		if err != nil {
			return Output{}, err
		}
		return Output{Value: "ok", Screenshots: map[string][]byte{a[0]: shot}}, nil
	}},
}

// Commands lists the names the shell understands.
func Commands() []string {
	names := lo.Keys(handlers)
	sort.Strings(names)
	return names
}

// ParseCommand parses name('arg', ...) where arguments are single-quoted
// strings and \' escapes a quote inside an argument.
func ParseCommand(input string) (Command, error) {
	input = strings.TrimSpace(input)
	open := strings.IndexByte(input, '(')
	if open <= 0 || !strings.HasSuffix(input, ")") {
		return Command{}, errors.Errorf("expected name('arg', ...), got %q", input)
	}
	cmd := Command{Name: strings.TrimSpace(input[:open])}
	args, err := parseArgs(input[open+1 : len(input)-1])
	if err != nil {
		return Command{}, errors.Wrapf(err, "invalid arguments of %s", cmd.Name)
	}
	cmd.Args = args
	return cmd, nil
}

func parseArgs(s string) ([]string, error) {
	var (
		args []string
		cur  strings.Builder
	)
	i := 0
	skipSpace := func() {
		for i < len(s) && s[i] == ' ' {
			i++
		}
	}
	for {
		skipSpace()
		if i == len(s) {
			if len(args) > 0 {
				return nil, errors.New("trailing comma")
			}
			return args, nil
		}
		if s[i] != '\'' {
			return nil, errors.Errorf("argument %d is not quoted", len(args)+1)
		}
		i++
		cur.Reset()
		closed := false
		for i < len(s) {
			c := s[i]
			if c == '\\' && i+1 < len(s) && s[i+1] == '\'' {
				cur.WriteByte('\'')
				i += 2
				continue
			}
			i++
			if c == '\'' {
				closed = true
				break
			}
			cur.WriteByte(c)
		}
		if !closed {
			return nil, errors.Errorf("argument %d is not terminated", len(args)+1)
		}
		args = append(args, cur.String())
		skipSpace()
		if i == len(s) {
			return args, nil
		}
		if s[i] != ',' {
			return nil, errors.Errorf("expected ',' after argument %d", len(args))
		}
		i++
	}
}

// Execute runs the command against the program.
func Execute(p Program, cmd Command) (Output, error) {
	h, ok := handlers[cmd.Name]
	if !ok {
		return Output{}, errors.Errorf("unknown command %q, known: %s", cmd.Name, strings.Join(Commands(), ", "))
	}
	if len(cmd.Args) != h.arity {
		return Output{}, errors.Errorf("%s expects %d argument(s), got %d", cmd.Name, h.arity, len(cmd.Args))
	}
	return h.run(p, cmd.Args)
}
