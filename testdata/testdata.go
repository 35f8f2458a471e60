package testdata

import (
	"time"

	"github.com/google/uuid"
)

const TestEmail = "foo@bar.com"
const TestSenderName = "Foo Bar"
const TestPassword = "app-password"
const TestTimeStr = "Fri, 18 Sep 1970 12:45:00 +0000"
const TestUidStr = "00000000-1111-2222-3333-444444444444"

var TestUid uuid.UUID = uuid.MustParse(TestUidStr)

var TestTimestamp time.Time = func() time.Time {
	var ts time.Time
	var err error

	if ts, err = time.Parse(time.RFC1123Z, TestTimeStr); err != nil {
		panic("failed to parse TestTimeStr: " + err.Error())
	}
	return ts
}()

const TestSubject = "Statement for {Name}"
const TestBody = "<p>Hi {Name},</p><p>Your balance is {Balance}.</p>"

// TestRecipientsCsv has one row with a missing Balance and one without a
// usable address.
const TestRecipientsCsv = "Email,Name,Balance\r\n" +
	"ana@example.com,Ana,10.00\r\n" +
	"bo@example.com,Bo,\r\n" +
	"not-an-address,Cy,3.50\r\n"
