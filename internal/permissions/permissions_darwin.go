//go:build darwin

package permissions

/*
#cgo LDFLAGS: -framework AVFoundation -framework Cocoa
#import <AVFoundation/AVFoundation.h>
#import <Cocoa/Cocoa.h>

int microphoneStatus() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
    return (int)status;
}

void requestMicrophone() {
    [AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio completionHandler:^(BOOL granted) {}];
}

// Prompts for accessibility as a side effect when not yet trusted.
int accessibilityTrusted() {
    NSDictionary *options = @{(__bridge id)kAXTrustedCheckOptionPrompt: @YES};
    return AXIsProcessTrustedWithOptions((__bridge CFDictionaryRef)options) ? 1 : 0;
}
*/
import "C"

type platform struct{}

func (platform) Microphone() Status { return Status(C.microphoneStatus()) }

func (platform) RequestMicrophone() { C.requestMicrophone() }

func (platform) Accessibility() bool { return C.accessibilityTrusted() == 1 }
