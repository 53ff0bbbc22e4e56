package catalog

// Screen names a navigation destination
type Screen string

const (
	ScreenSplash      Screen = "Splash"
	ScreenMain        Screen = "Main"
	ScreenBookDetails Screen = "BookDetails"
	ScreenUsers       Screen = "Users"
)

// Action is how the navigation host should apply an intent
type Action string

const (
	// ActionNavigate pushes the target screen
	ActionNavigate Action = "navigate"
	// ActionReplace replaces the current screen with the target
	ActionReplace Action = "replace"
	// ActionBack pops the current screen; Screen is empty
	ActionBack Action = "back"
)

// ParamBookID is the BookDetails parameter carrying the book id
const ParamBookID = "bookId"

// Intent is a logical navigation request. The catalog never navigates
// itself; a Navigator carries intents out.
type Intent struct {
	Action Action                 `json:"action"`
	Screen Screen                 `json:"screen,omitempty"`
	Params map[string]interface{} `json:"params,omitempty"`
}

// Navigator receives navigation intents
type Navigator interface {
	Navigate(intent Intent)
}

// NavigatorFunc adapts a function to Navigator
type NavigatorFunc func(Intent)

// Navigate calls f(intent)
func (f NavigatorFunc) Navigate(intent Intent) { f(intent) }

// BookDetails returns an intent opening the details screen for bookID.
// replace is used when already on a details screen.
func BookDetails(bookID int64, replace bool) Intent {
	action := ActionNavigate
	if replace {
		action = ActionReplace
	}
	return Intent{
		Action: action,
		Screen: ScreenBookDetails,
		Params: map[string]interface{}{ParamBookID: bookID},
	}
}

// Back returns a back-navigation intent
func Back() Intent {
	return Intent{Action: ActionBack}
}

// Main returns the intent leaving the splash screen
func Main() Intent {
	return Intent{Action: ActionReplace, Screen: ScreenMain}
}

// BookID extracts the book id parameter
func (i Intent) BookID() (int64, bool) {
	id, ok := i.Params[ParamBookID].(int64)
	return id, ok
}
