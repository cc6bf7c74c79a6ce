package mail

import (
	"fmt"
	"html"
)

// VerificationMessage asks the claimer to confirm ownership of botName.
func VerificationMessage(from, to, botName, verifyURL string) Message {
	name := html.EscapeString(botName)
	link := html.EscapeString(verifyURL)
	return Message{
		Kind:    KindVerification,
		From:    from,
		To:      []string{to},
		Subject: fmt.Sprintf("Verify your claim of %s on Dreambook for Bots", botName),
		HTML: fmt.Sprintf(`<p>Someone (hopefully you) asked to claim the bot <strong>%s</strong> on Dreambook for Bots.</p>
<p><a href="%s">Verify your email and activate %s</a></p>
<p>The link expires in 24 hours. If you did not request this, ignore this email.</p>`, name, link, name),
	}
}

// OwnerClaimNotice tells the site owner a bot was claimed.
func OwnerClaimNotice(from, to, botName, claimedBy, siteURL string) Message {
	return Message{
		Kind:    KindOwnerNotice,
		From:    from,
		To:      []string{to},
		Subject: "New bot claimed: " + botName,
		HTML: fmt.Sprintf(`<p>A bot on <strong>Dreambook for Bots</strong> has just been claimed.</p>
<ul>
<li><strong>Bot name:</strong> %s</li>
<li><strong>Claimed by:</strong> %s</li>
</ul>
<p><a href="%s">Visit Dreambook for Bots</a></p>`,
			html.EscapeString(botName), html.EscapeString(claimedBy), html.EscapeString(siteURL)),
	}
}
