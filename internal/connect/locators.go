package connect

const (
	toolbar = `div[role="toolbar"]`
	topcard = `section[componentkey*="Topcard"]`
)

var pendingLocators = []Locator{
	{CSS: toolbar + ` div[data-view-name="relationship-building-button"] :is(a, button)`, Text: "Pending"},
	{CSS: toolbar + ` :is(a, button)[aria-label*="Pending" i]`},
	{CSS: toolbar + ` :is(a, button)[aria-label*="Connected" i]`},
	{CSS: topcard + ` :is(a, button)[aria-label*="Pending" i]`},
	{CSS: topcard + ` :is(a, button)[aria-label*="Connected" i]`},
}

// connectLocators prefer the top card so sidebar recommendations never match.
var connectLocators = []Locator{
	{CSS: toolbar + ` div[data-view-name="edge-creation-connect-action"] :is(a, button)`},
	{CSS: toolbar + ` div[data-view-name="relationship-building-button"] :is(a, button)[aria-label*="connect" i]`},
	{CSS: toolbar + ` :is(a, button)[aria-label*="Invite"][aria-label*="connect" i]`},
	{CSS: topcard + ` div[data-view-name="edge-creation-connect-action"] :is(a, button)`},
	{CSS: topcard + ` div[data-view-name="relationship-building-button"] :is(a, button)[aria-label*="connect" i]`},
	{CSS: `div[data-view-name="edge-creation-connect-action"] :is(a, button)`},
	{CSS: `div[data-view-name="relationship-building-button"] :is(a, button)[aria-label*="connect" i]`},
	{CSS: `a[href*="/preload/custom-invite/"]`},
	{CSS: `button[aria-label*="Invite"][aria-label*="connect" i]`},
	{CSS: `a[aria-label*="Invite"][aria-label*="connect" i]`},
	{CSS: `button`, Text: "Connect"},
	{CSS: `a`, Text: "Connect"},
}

var moreMenuLocators = []Locator{
	{CSS: toolbar + ` div[data-view-name="profile-overflow-button"] button`},
	{CSS: topcard + ` div[data-view-name="profile-overflow-button"] button`},
	{CSS: `div[data-view-name="profile-overflow-button"] button`},
	{CSS: `button[aria-label*="Open actions menu" i]`},
	{CSS: `button[aria-label="More actions"]`},
	{CSS: `button[aria-label*="More actions" i]`},
	{CSS: `button[aria-label="More"]`},
	{CSS: `button[aria-label*="More" i]`},
	{CSS: `button:has(svg[id*="overflow"])`},
}

var dropdownLocators = []Locator{
	{CSS: `div.artdeco-dropdown__content-inner :is(button, a, div, li, span)`, Text: "Connect"},
	{CSS: `div.artdeco-dropdown__content :is(button, a, div, li, span)`, Text: "Connect"},
	{CSS: `[role="menu"] :is(button, a, div)[aria-label*="connect" i]`},
	{CSS: `[role="menu"] :is(button, a, div)`, Text: "Connect"},
	{CSS: `button[role="menuitem"]`, Text: "Connect"},
	{CSS: `div[role="menuitem"]`, Text: "Connect"},
	{CSS: `li[role="menuitem"]`, Text: "Connect"},
	{CSS: `li`, Text: "Connect"},
}

var inviteSendLocators = []Locator{
	{CSS: `button[aria-label*="Send"]`},
	{CSS: `button`, Text: "Send invitation"},
	{CSS: `button`, Text: "Send without a note"},
	{CSS: `button`, Text: "Send now"},
	{CSS: `button`, Text: "Send"},
	{CSS: `a`, Text: "Send"},
}

var modalLocators = []string{
	`div[role="dialog"]`,
	`div[class*="artdeco-modal"]`,
	`div[data-test-modal]`,
}

func modalSendLocators(scope string) []Locator {
	return []Locator{
		{Scope: scope, CSS: `button[aria-label="Send without a note"]`},
		{Scope: scope, CSS: `button[aria-label="Send now"]`},
		{Scope: scope, CSS: `button[aria-label="Send invitation"]`},
		{Scope: scope, CSS: `button`, Text: "Send"},
	}
}

var successLocators = []Locator{
	{CSS: `body`, Text: "Invitation sent"},
	{CSS: `body`, Text: "Request sent"},
	{CSS: `body`, Text: "You're connected"},
	{CSS: `button`, Text: "Pending"},
	{CSS: `:is(a, button)[aria-label*="Pending" i]`},
}

// pendingSendLocators detect invite-page send controls that are still showing.
var pendingSendLocators = []Locator{
	{CSS: `button[aria-label*="Send invitation" i]`},
	{CSS: `button[aria-label="Send without a note"]`},
	{CSS: `button[aria-label="Send now"]`},
	{CSS: `button`, Text: "Send invitation"},
	{CSS: `button`, Text: "Send without a note"},
	{CSS: `button`, Text: "Send now"},
}
