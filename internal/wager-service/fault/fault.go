package fault

import "errors"

// Kind classifica as falhas expostas pela API do engine.
// Nenhum erro carrega stack trace ou identificador interno; só kind + mensagem.
type Kind string

const (
	Unauthenticated    Kind = "unauthenticated"
	PermissionDenied   Kind = "permission-denied"
	InvalidArgument    Kind = "invalid-argument"
	FailedPrecondition Kind = "failed-precondition"
	NotFound           Kind = "not-found"
	Internal           Kind = "internal"
)

// Error é o erro tipado retornado pelas operações do engine.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Message }

func (e *Error) Unwrap() error { return e.cause }

// New cria um erro tipado.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap reclassifica um erro de infraestrutura como Internal, preservando a
// causa na cadeia mas expondo só a mensagem dada. Erros já tipados passam
// inalterados.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	if fe := As(err); fe != nil {
		return fe
	}
	return &Error{Kind: Internal, Message: msg, cause: err}
}

// As extrai o *Error da cadeia, ou nil se não houver.
func As(err error) *Error {
	var fe *Error
	if errors.As(err, &fe) {
		return fe
	}
	return nil
}

// KindOf retorna o Kind do erro; erros não tipados contam como Internal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if fe := As(err); fe != nil {
		return fe.Kind
	}
	return Internal
}
