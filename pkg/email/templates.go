package email

import (
	"fmt"
	"html"
)

// ResultSubject picks the subject line for an outcome.
func ResultSubject(overallStatus string) string {
	if overallStatus == "approved" {
		return "Your identity has been verified"
	}
	return "Your identity verification could not be completed"
}

// ResultEmailTemplate generates HTML for a verification result
func ResultEmailTemplate(msg ResultMessage) string {
	name := msg.Name
	if name == "" {
		name = "there"
	}

	headline := "Identity Verified"
	body := "Your identity verification finished successfully. The service that requested it has been notified."
	color := "#059669"
	if msg.OverallStatus != "approved" {
		headline = "Verification Not Completed"
		body = "We could not complete your identity verification. Please contact the service that requested it if you need to try again."
		color = "#DC2626"
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%[1]s</title>
</head>
<body style="margin: 0; padding: 0; font-family: Arial, sans-serif; background-color: #f4f4f4;">
    <table role="presentation" style="width: 100%%; border-collapse: collapse;">
        <tr>
            <td align="center" style="padding: 40px 0;">
                <table role="presentation" style="width: 600px; border-collapse: collapse; background-color: #ffffff; border-radius: 8px;">
                    <tr>
                        <td style="padding: 40px 30px; text-align: center; background-color: %[2]s; border-radius: 8px 8px 0 0;">
                            <h1 style="margin: 0; color: #ffffff; font-size: 28px;">%[1]s</h1>
                        </td>
                    </tr>
                    <tr>
                        <td style="padding: 40px 30px;">
                            <p style="margin: 0 0 20px; font-size: 16px; line-height: 24px; color: #333333;">Hi %[3]s,</p>
                            <p style="margin: 0 0 20px; font-size: 16px; line-height: 24px; color: #333333;">%[4]s</p>
                            <p style="margin: 20px 0 0; font-size: 12px; line-height: 18px; color: #666666;">Reference: %[5]s</p>
                        </td>
                    </tr>
                </table>
            </td>
        </tr>
    </table>
</body>
</html>
`, headline, color, html.EscapeString(name), body, html.EscapeString(reference(msg)))
}

func reference(msg ResultMessage) string {
	if msg.VerificationID != "" {
		return msg.VerificationID
	}
	return msg.SessionID
}
