package runtime

import "fmt"

type ChoiceKind uint8

const (
	ChoiceEnd ChoiceKind = iota
	ChoiceTask
	ChoiceBlockTask
	ChoiceBlockExecution
)

// Choice is the decision a strategy makes at one scheduling point.
// The zero value ends the iteration.
type Choice struct {
	Kind ChoiceKind
	Task TaskID
	// Err explains a blocked execution; nil means the block is expected.
	Err error
}

func Resume(id TaskID) Choice { return Choice{Kind: ChoiceTask, Task: id} }

func BlockTask(id TaskID) Choice { return Choice{Kind: ChoiceBlockTask, Task: id} }

func BlockExecution(err error) Choice { return Choice{Kind: ChoiceBlockExecution, Err: err} }

func End() Choice { return Choice{} }

func (c Choice) String() string {
	switch c.Kind {
	case ChoiceTask:
		return fmt.Sprintf("task(%d)", c.Task)
	case ChoiceBlockTask:
		return fmt.Sprintf("block-task(%d)", c.Task)
	case ChoiceBlockExecution:
		if c.Err != nil {
			return fmt.Sprintf("block-execution(%v)", c.Err)
		}
		return "block-execution"
	default:
		return "end"
	}
}
