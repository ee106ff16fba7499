package checkout

// State is a step of one checkout attempt.
type State int

const (
	Idle State = iota
	Validating
	CreatingOrder
	AwaitingGatewayScript
	WidgetOpen
	VerifyingPayment
	Succeeded
	Cancelled
	Failed
)

var stateNames = [...]string{
	Idle:                  "idle",
	Validating:            "validating",
	CreatingOrder:         "creating_order",
	AwaitingGatewayScript: "awaiting_gateway_script",
	WidgetOpen:            "widget_open",
	VerifyingPayment:      "verifying_payment",
	Succeeded:             "succeeded",
	Cancelled:             "cancelled",
	Failed:                "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// IsTerminal reports whether s ends an attempt. A new attempt starts over
// from Idle.
func (s State) IsTerminal() bool {
	return s == Succeeded || s == Cancelled || s == Failed
}

// Active reports whether an attempt is in flight.
func (s State) Active() bool {
	return s != Idle && !s.IsTerminal()
}

var transitions = map[State][]State{
	Idle:                  {Validating},
	Validating:            {Idle, CreatingOrder},
	CreatingOrder:         {AwaitingGatewayScript, Failed},
	AwaitingGatewayScript: {WidgetOpen, Failed},
	WidgetOpen:            {VerifyingPayment, Cancelled, Failed},
	VerifyingPayment:      {Succeeded, Failed},
	Succeeded:             {Idle},
	Cancelled:             {Idle},
	Failed:                {Idle},
}

// CanTransition reports whether an attempt may move from one state to
// another.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
