package state

import "fmt"

// State is an order's position in the fulfillment pipeline.
type State string

// Action is a unit of work that moves an order between states.
type Action string

// Pipeline states, in chain order.
const (
	Started              State = "started"
	ReadyToPropose       State = "ready_to_propose"
	ProposedToWineExpert State = "proposed_to_wine_expert"
	Approved             State = "approved"
	ProposedToUser       State = "proposed_to_user"
	OfferAccepted        State = "offer_accepted"
	SupportNotified      State = "support_notified"
	OrderPlaced          State = "order_placed"
	OrderShipped         State = "order_shipped"
	MoneyCaptured        State = "money_captured"
	UserNotifiedShipped  State = "user_notified_shipped"
	UserReceived         State = "user_received"
	Completed            State = "completed"
)

// Exception states come in pairs: the order first lands in the to-notify
// variant, then NOTIFY_EXCEPTION moves it to the notified one.
const (
	ExceptionToNotify                    State = "exception_to_notify"
	Exception                            State = "exception"
	SearchExceptionToNotify              State = "search_exception_to_notify"
	SearchException                      State = "search_exception"
	NotifyWineExpertExceptionToNotify    State = "notify_wine_expert_exception_to_notify"
	NotifyWineExpertException            State = "notify_wine_expert_exception"
	AuthorizePaymentExceptionToNotify    State = "authorize_payment_exception_to_notify"
	AuthorizePaymentException            State = "authorize_payment_exception"
	NotifyAcceptedOfferExceptionToNotify State = "notify_accepted_offer_exception_to_notify"
	NotifyAcceptedOfferException         State = "notify_accepted_offer_exception"
	CaptureMoneyExceptionToNotify        State = "capture_money_exception_to_notify"
	CaptureMoneyException                State = "capture_money_exception"
	NextMonthOrderExceptionToNotify      State = "next_month_order_exception_to_notify"
	NextMonthOrderException              State = "next_month_order_exception"
)

const (
	ActionSearch              Action = "search"
	ActionNotifyWineExpert    Action = "notify_wine_expert"
	ActionApprove             Action = "approve"
	ActionNotifyUser          Action = "notify_user"
	ActionAccept              Action = "accept"
	ActionNotifyAcceptedOffer Action = "notify_accepted_offer"
	ActionPlaceOrder          Action = "place_order"
	ActionSetShipped          Action = "set_shipped"
	ActionCaptureMoney        Action = "capture_money"
	ActionNotifyUserShipped   Action = "notify_user_shipped"
	ActionSetUserReceived     Action = "set_user_received"
	ActionComplete            Action = "complete"
	ActionNotifyException     Action = "notify_exception"
	ActionRetrySearch         Action = "retry_search"
)

type actionSet map[Action]struct{}

func setOf(actions ...Action) actionSet {
	s := make(actionSet, len(actions))
	for _, a := range actions {
		s[a] = struct{}{}
	}
	return s
}

// validActions enumerates every action permitted from a state, automatic
// continuations and operator retries alike. Completed is terminal.
var validActions = map[State]actionSet{
	Started:              setOf(ActionSearch),
	ReadyToPropose:       setOf(ActionNotifyWineExpert, ActionRetrySearch),
	ProposedToWineExpert: setOf(ActionApprove, ActionRetrySearch),
	Approved:             setOf(ActionNotifyUser, ActionRetrySearch),
	ProposedToUser:       setOf(ActionAccept, ActionRetrySearch),
	OfferAccepted:        setOf(ActionNotifyAcceptedOffer),
	SupportNotified:      setOf(ActionPlaceOrder),
	OrderPlaced:          setOf(ActionSetShipped),
	OrderShipped:         setOf(ActionCaptureMoney),
	MoneyCaptured:        setOf(ActionNotifyUserShipped),
	UserNotifiedShipped:  setOf(ActionSetUserReceived),
	UserReceived:         setOf(ActionComplete),
	Completed:            setOf(),

	ExceptionToNotify:                    setOf(ActionRetrySearch),
	Exception:                            setOf(ActionRetrySearch),
	SearchExceptionToNotify:              setOf(ActionRetrySearch),
	SearchException:                      setOf(ActionRetrySearch),
	NotifyWineExpertExceptionToNotify:    setOf(ActionRetrySearch),
	NotifyWineExpertException:            setOf(ActionRetrySearch),
	AuthorizePaymentExceptionToNotify:    setOf(ActionRetrySearch),
	AuthorizePaymentException:            setOf(ActionRetrySearch),
	NotifyAcceptedOfferExceptionToNotify: setOf(ActionRetrySearch),
	NotifyAcceptedOfferException:         setOf(ActionRetrySearch),
	CaptureMoneyExceptionToNotify:        setOf(ActionRetrySearch),
	CaptureMoneyException:                setOf(ActionRetrySearch),
	NextMonthOrderExceptionToNotify:      setOf(),
	NextMonthOrderException:              setOf(),
}

// validManualActions is the subset exposed to operators. Advisory: the HTTP
// boundary enforces it, the orchestrator checks only validActions.
var validManualActions = map[State][]Action{
	Started:              {},
	ReadyToPropose:       {ActionRetrySearch},
	ProposedToWineExpert: {ActionApprove, ActionRetrySearch},
	Approved:             {ActionRetrySearch},
	ProposedToUser:       {ActionRetrySearch},
	OfferAccepted:        {},
	SupportNotified:      {ActionPlaceOrder},
	OrderPlaced:          {ActionSetShipped},
	OrderShipped:         {},
	MoneyCaptured:        {},
	UserNotifiedShipped:  {ActionSetUserReceived},
	UserReceived:         {},
	Completed:            {},

	ExceptionToNotify:                    {ActionRetrySearch},
	Exception:                            {ActionRetrySearch},
	SearchExceptionToNotify:              {ActionRetrySearch},
	SearchException:                      {ActionRetrySearch},
	NotifyWineExpertExceptionToNotify:    {ActionRetrySearch},
	NotifyWineExpertException:            {ActionRetrySearch},
	AuthorizePaymentExceptionToNotify:    {ActionRetrySearch},
	AuthorizePaymentException:            {ActionRetrySearch},
	NotifyAcceptedOfferExceptionToNotify: {ActionRetrySearch},
	NotifyAcceptedOfferException:         {ActionRetrySearch},
	CaptureMoneyExceptionToNotify:        {ActionRetrySearch},
	CaptureMoneyException:                {ActionRetrySearch},
	NextMonthOrderExceptionToNotify:      {},
	NextMonthOrderException:              {},
}

// exceptionRoutes maps a failing action to the to-notify state the order
// parks in. Actions without an entry fall back to ExceptionToNotify.
var exceptionRoutes = map[Action]State{
	ActionSearch:              SearchExceptionToNotify,
	ActionNotifyWineExpert:    NotifyWineExpertExceptionToNotify,
	ActionAccept:              AuthorizePaymentExceptionToNotify,
	ActionNotifyAcceptedOffer: NotifyAcceptedOfferExceptionToNotify,
	ActionCaptureMoney:        CaptureMoneyExceptionToNotify,
	ActionComplete:            NextMonthOrderExceptionToNotify,
}

// notifiedRoutes pairs each to-notify state with its notified counterpart.
var notifiedRoutes = map[State]State{
	ExceptionToNotify:                    Exception,
	SearchExceptionToNotify:              SearchException,
	NotifyWineExpertExceptionToNotify:    NotifyWineExpertException,
	AuthorizePaymentExceptionToNotify:    AuthorizePaymentException,
	NotifyAcceptedOfferExceptionToNotify: NotifyAcceptedOfferException,
	CaptureMoneyExceptionToNotify:        CaptureMoneyException,
	NextMonthOrderExceptionToNotify:      NextMonthOrderException,
}

var exceptionToNotifyStates = map[State]struct{}{}
var notifiedExceptionStates = map[State]struct{}{}

var actionsByName = map[string]Action{}

func init() {
	for toNotify, notified := range notifiedRoutes {
		exceptionToNotifyStates[toNotify] = struct{}{}
		notifiedExceptionStates[notified] = struct{}{}
		validActions[toNotify][ActionNotifyException] = struct{}{}
	}

	for _, a := range []Action{
		ActionSearch, ActionNotifyWineExpert, ActionApprove, ActionNotifyUser,
		ActionAccept, ActionNotifyAcceptedOffer, ActionPlaceOrder, ActionSetShipped,
		ActionCaptureMoney, ActionNotifyUserShipped, ActionSetUserReceived,
		ActionComplete, ActionNotifyException, ActionRetrySearch,
	} {
		actionsByName[string(a)] = a
	}
}

// IsValidAction reports whether the action may run from the state.
func IsValidAction(s State, a Action) bool {
	actions, ok := validActions[s]
	if !ok {
		return false
	}
	_, ok = actions[a]
	return ok
}

// ManualActions returns the operator-triggerable actions for the state.
func ManualActions(s State) []Action {
	return validManualActions[s]
}

// IsManualAction reports whether the action is on the state's manual
// allow-list.
func IsManualAction(s State, a Action) bool {
	for _, manual := range validManualActions[s] {
		if manual == a {
			return true
		}
	}
	return false
}

// ExceptionRoute returns the to-notify state for a failed action.
func ExceptionRoute(a Action) State {
	if s, ok := exceptionRoutes[a]; ok {
		return s
	}
	return ExceptionToNotify
}

// NotifiedRoute returns the notified counterpart of a to-notify state.
func NotifiedRoute(s State) State {
	if notified, ok := notifiedRoutes[s]; ok {
		return notified
	}
	return Exception
}

// IsExceptionToNotify reports whether the state awaits expert notification.
func IsExceptionToNotify(s State) bool {
	_, ok := exceptionToNotifyStates[s]
	return ok
}

// IsExceptionState reports whether the state belongs to either exception
// family. The stored exception message survives transitions only within it.
func IsExceptionState(s State) bool {
	if _, ok := exceptionToNotifyStates[s]; ok {
		return true
	}
	_, ok := notifiedExceptionStates[s]
	return ok
}

// ParseAction converts a wire value into a known Action.
func ParseAction(name string) (Action, error) {
	if a, ok := actionsByName[name]; ok {
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", name)
}

// ProposedStates lists states where an offer awaits the user's decision.
func ProposedStates() []State {
	return []State{ProposedToUser}
}

// UpcomingStates lists states between acceptance and delivery.
func UpcomingStates() []State {
	return []State{OfferAccepted, SupportNotified, OrderPlaced, OrderShipped, MoneyCaptured, UserNotifiedShipped}
}

// HistoryStates lists states of finished orders.
func HistoryStates() []State {
	return []State{UserReceived, Completed}
}

// TimeoutExemptStates lists states the timed-out sweep never flags: the
// start and terminal positions, shipping in transit, and every exception
// state already awaiting an operator.
func TimeoutExemptStates() []State {
	states := []State{Started, OrderShipped, Completed}
	for _, toNotify := range []State{
		ExceptionToNotify, SearchExceptionToNotify, NotifyWineExpertExceptionToNotify,
		AuthorizePaymentExceptionToNotify, NotifyAcceptedOfferExceptionToNotify,
		CaptureMoneyExceptionToNotify, NextMonthOrderExceptionToNotify,
	} {
		states = append(states, toNotify, notifiedRoutes[toNotify])
	}
	return states
}
