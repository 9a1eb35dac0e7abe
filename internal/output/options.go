package output

import "io"

// Option is a functional option for configuring Printer instances.
type Option func(*Printer)

// WithStyles configures the printer to use the provided StyleProvider.
func WithStyles(provider StyleProvider) Option {
	return func(p *Printer) {
		p.styleProvider = provider
	}
}

// WithWriter configures the printer to write to writer instead of os.Stdout.
func WithWriter(writer io.Writer) Option {
	return func(p *Printer) {
		if writer != nil {
			p.writer = writer
		}
	}
}

// WithMode configures the output mode.
func WithMode(mode Mode) Option {
	return func(p *Printer) {
		p.mode = mode
	}
}

// PlainText disables styling.
func PlainText() Option {
	return WithMode(ModePlain)
}

// JSON configures the printer for JSON lines output.
func JSON() Option {
	return WithMode(ModeJSON)
}

// WithPrefix prepends prefix to every message.
func WithPrefix(prefix string) Option {
	return func(p *Printer) {
		p.prefix = prefix
	}
}
