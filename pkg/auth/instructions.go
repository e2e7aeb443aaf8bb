package auth

// CookieGuide explains where to find the session cookie. It is shown as the
// long help of the auth set command.
const CookieGuide = `The crawler sends your m.weibo.cn session cookie with every feed request.

To find it:
  1. Log in at https://m.weibo.cn in a desktop browser.
  2. Open the developer tools (F12) and select the Network tab.
  3. Reload, then click any request to m.weibo.cn/api/.
  4. Under Request Headers, copy the value of the Cookie header.

Either the whole header value or only the SUB cookie's value is accepted.
A bare value is sent as SUB=<value>.

The cookie grants full access to the account. It is stored in the system
keychain when one is available, otherwise in an encrypted file under the
config directory. Set WEIBOCRAWL_PASSPHRASE to choose the file's passphrase.`
